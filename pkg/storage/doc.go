// Package storage provides filesystem-backed asset storage confined to a
// single root directory.
//
// The root contains two first-level trees: uploads/ for originals and
// compressed/ for transcoded derivatives. A derivative is paired with its
// original purely by sharing the same filename across the two trees.
//
// Every operation takes a root-relative path and routes it through Resolve,
// which percent-decodes, canonicalizes (symlinks included) and verifies that
// the result stays inside the root. Traversal attempts, whether lexical
// ("../") or routed through a symlink pointing outside, fail with
// ErrInvalidPath before any filesystem access happens.
//
// Usage:
//
//	store, err := storage.NewLocalStorage("/var/lib/blog/static", "https://blog.example.com")
//	if err != nil {
//		return err
//	}
//
//	name, err := store.AllocateName(ctx, storage.UploadsDir, "photo.jpg")
//	if err != nil {
//		return err
//	}
//	if err := store.Write(ctx, filepath.Join(storage.UploadsDir, name), data); err != nil {
//		return err
//	}
//	url := store.URL(filepath.Join(storage.UploadsDir, name))
//
// AllocateName implements a bounded check-then-create retry: base name first,
// then a timestamp suffix, then a counter for same-second collisions. The
// sequence is best-effort, not atomic; two concurrent uploads racing on the
// same name within the same second can still collide.
package storage
