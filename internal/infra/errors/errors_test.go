package errors

import (
	"io/fs"
	"os"
	"testing"

	"github.com/shoenig/test"
	"github.com/shoenig/test/must"
)

func TestWrapKeepsCause(t *testing.T) {
	err := Wrapf(fs.ErrNotExist, "read link %q", "/run/udev/watch/3")
	test.EqError(t, err, `read link "/run/udev/watch/3": file does not exist`)
	test.True(t, IsNotExist(err))
}

func TestCombine(t *testing.T) {
	test.Nil(t, Combine())
	test.Nil(t, Combine(nil, nil))

	single := New("single")
	test.True(t, Combine(nil, single) == single)

	other := New("other")
	combined := Combine(single, nil, other)
	must.Error(t, combined)
	test.True(t, Is(combined, single))
	test.True(t, Is(combined, other))
}

func TestIsNotExistOnPathError(t *testing.T) {
	_, err := os.Lstat(t.TempDir() + "/missing")
	test.True(t, IsNotExist(err))

	var pathErr *fs.PathError
	test.True(t, As(err, &pathErr))
	test.Eq(t, "lstat", pathErr.Op)
}
