package media

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/finmate/finmate/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSaveAndDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewLocalStore(zap.NewNop(), root, "/media/", 1024)

	name, err := s.Save(ctx, "profile_images", "me.PNG", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "profile_images/"))
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.Equal(t, "/media/"+name, s.URL(name))

	data, err := os.ReadFile(filepath.Join(root, name))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.Delete(ctx, name))
	_, err = os.Stat(filepath.Join(root, name))
	assert.True(t, os.IsNotExist(err))

	// already gone
	assert.NoError(t, s.Delete(ctx, name))
}

func TestSaveRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(zap.NewNop(), t.TempDir(), "/media", 4)

	_, err := s.Save(ctx, "profile_images", "script.sh", strings.NewReader("x"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))

	_, err = s.Save(ctx, "profile_images", "big.jpg", bytes.NewReader(make([]byte, 10)))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}
