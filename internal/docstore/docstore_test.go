package docstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	doc, err := st.Register("policy.pdf", []byte("pdf bytes"))
	require.NoError(t, err)

	assert.Equal(t, "policy.pdf", doc.Name)
	assert.Equal(t, int64(9), doc.Size)
	assert.Contains(t, doc.Hash, "xxh64:")

	// Backing file was written and verified
	info, err := os.Stat(doc.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(9), info.Size())
}

func TestRegisterStripsDirectories(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	doc, err := st.Register("../../escape.pdf", []byte("x"))
	require.NoError(t, err)

	assert.Equal(t, "escape.pdf", doc.Name)
	assert.Equal(t, filepath.Join(st.Root(), "escape.pdf"), doc.Path)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = st.Register("a.pdf", []byte("one"))
	require.NoError(t, err)

	_, err = st.Register("a.pdf", []byte("two"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateName)

	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "a.pdf", regErr.Name)
}

func TestRegisterRejectsEmpty(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = st.Register("empty.pdf", nil)
	require.Error(t, err)

	var regErr *RegistrationError
	assert.ErrorAs(t, err, &regErr)
	assert.Equal(t, 0, st.Count())
}

func TestRemove(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	doc, err := st.Register("a.pdf", []byte("x"))
	require.NoError(t, err)

	assert.True(t, st.Remove("a.pdf"))
	assert.Equal(t, 0, st.Count())

	// Backing file deleted
	_, err = os.Stat(doc.Path)
	assert.True(t, os.IsNotExist(err))

	// Second remove reports no entry
	assert.False(t, st.Remove("a.pdf"))
}

func TestRemoveWithMissingFile(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	doc, err := st.Register("a.pdf", []byte("x"))
	require.NoError(t, err)

	// File vanished out of band; Remove is still best-effort
	require.NoError(t, os.Remove(doc.Path))
	assert.True(t, st.Remove("a.pdf"))
}

func TestClearIdempotent(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = st.Register("a.pdf", []byte("x"))
	require.NoError(t, err)
	_, err = st.Register("b.pdf", []byte("y"))
	require.NoError(t, err)

	st.Clear()
	assert.Equal(t, 0, st.Count())

	// Second clear is a no-op
	st.Clear()
	assert.Equal(t, 0, st.Count())
}

func TestValidRechecksDisk(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	good, err := st.Register("good.pdf", []byte("content"))
	require.NoError(t, err)
	gone, err := st.Register("gone.pdf", []byte("content"))
	require.NoError(t, err)
	truncated, err := st.Register("truncated.pdf", []byte("content"))
	require.NoError(t, err)

	// Delete one file and truncate another behind the registry's back
	require.NoError(t, os.Remove(gone.Path))
	require.NoError(t, os.WriteFile(truncated.Path, nil, 0644))

	valid := st.Valid()
	require.Len(t, valid, 1)
	assert.Equal(t, good.Name, valid[0].Name)

	// The registry itself is not pruned
	assert.Equal(t, 3, st.Count())
}

func TestDocumentsPreservesRegistrationOrder(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"c.pdf", "a.pdf", "b.pdf"} {
		_, err := st.Register(name, []byte("x"))
		require.NoError(t, err)
	}

	docs := st.Documents()
	require.Len(t, docs, 3)
	assert.Equal(t, "c.pdf", docs[0].Name)
	assert.Equal(t, "a.pdf", docs[1].Name)
	assert.Equal(t, "b.pdf", docs[2].Name)
}

func TestGet(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = st.Register("a.pdf", []byte("x"))
	require.NoError(t, err)

	doc, ok := st.Get("a.pdf")
	require.True(t, ok)
	assert.Equal(t, "a.pdf", doc.Name)

	_, ok = st.Get("missing.pdf")
	assert.False(t, ok)
}

func TestRestore(t *testing.T) {
	root := t.TempDir()

	st, err := New(root)
	require.NoError(t, err)

	first, err := st.Register("first.pdf", []byte("first content"))
	require.NoError(t, err)
	_, err = st.Register("second.txt", []byte("second content"))
	require.NoError(t, err)

	// Hidden files under the root are not documents
	require.NoError(t, os.WriteFile(filepath.Join(root, ".DS_Store"), []byte("junk"), 0644))

	// A fresh store over the same root sees the same documents
	reopened, err := New(root)
	require.NoError(t, err)
	require.NoError(t, reopened.Restore())

	docs := reopened.Documents()
	require.Len(t, docs, 2)
	names := []string{docs[0].Name, docs[1].Name}
	assert.Contains(t, names, "first.pdf")
	assert.Contains(t, names, "second.txt")

	got, ok := reopened.Get("first.pdf")
	require.True(t, ok)
	assert.Equal(t, first.Hash, got.Hash)
	assert.Equal(t, first.Size, got.Size)
}

func TestFingerprint(t *testing.T) {
	root := t.TempDir()
	st, err := New(root)
	require.NoError(t, err)

	assert.Equal(t, "", st.Fingerprint())

	_, err = st.Register("a.txt", []byte("one"))
	require.NoError(t, err)
	fp1 := st.Fingerprint()
	assert.NotEmpty(t, fp1)

	_, err = st.Register("b.txt", []byte("two"))
	require.NoError(t, err)
	fp2 := st.Fingerprint()
	assert.NotEqual(t, fp1, fp2)

	// Removing the addition restores the original fingerprint
	assert.True(t, st.Remove("b.txt"))
	assert.Equal(t, fp1, st.Fingerprint())

	// A fresh store restored over the same root reproduces the fingerprint
	reopened, err := New(root)
	require.NoError(t, err)
	require.NoError(t, reopened.Restore())
	assert.Equal(t, fp1, reopened.Fingerprint())
}

func TestRestoreEmptyRoot(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.Restore())
	assert.Equal(t, 0, st.Count())
}
