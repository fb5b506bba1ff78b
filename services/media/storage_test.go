package mediasvc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

// smallest valid PNG header
var pngData = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

func newStorage(t *testing.T, maxSize int64) (*Storage, afero.Fs) {
	conf := new(core.Config)
	conf.Media.Root = "media"
	conf.Media.BaseURL = "/media"
	conf.Media.MaxUploadSize = maxSize

	fs := afero.NewMemMapFs()
	s, err := NewStorage(fs, conf)
	require.NoError(t, err)
	return s, fs
}

func TestStorage_Save(t *testing.T) {
	s, fs := newStorage(t, 1024)
	ctx := context.Background()

	url, err := s.Save(ctx, "cat.png", bytes.NewReader(pngData))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/media/gallery/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	stored, err := afero.ReadFile(fs, "media/"+strings.TrimPrefix(url, "/media/"))
	require.NoError(t, err)
	assert.Equal(t, pngData, stored)

	f, info, err := s.Open(strings.TrimPrefix(url, "/media/"))
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	_ = f.Close()
	assert.Equal(t, pngData, got)
	assert.Equal(t, int64(len(pngData)), info.Size())

	require.NoError(t, s.Remove(ctx, url))
	_, _, err = s.Open(strings.TrimPrefix(url, "/media/"))
	assert.Error(t, err)

	// already removed, or not ours
	assert.NoError(t, s.Remove(ctx, url))
	assert.NoError(t, s.Remove(ctx, "https://cdn.test.cd/cat.png"))
}

func TestStorage_Save_invalid(t *testing.T) {
	s, _ := newStorage(t, 16)
	ctx := context.Background()

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "too large", data: pngData, wantErr: ErrTooLarge},
		{name: "not an image", data: []byte("hello"), wantErr: ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Save(ctx, "file", bytes.NewReader(tt.data))
			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr), "Save() error = %v", err)
			assert.Equal(t, tt.wantErr, verr.Err)
		})
	}
}

func TestStorage_Open_traversal(t *testing.T) {
	s, fs := newStorage(t, 1024)
	require.NoError(t, afero.WriteFile(fs, "secret.txt", []byte("nope"), 0o644))

	_, _, err := s.Open("../secret.txt")
	assert.Error(t, err)
	_, _, err = s.Open("")
	assert.Error(t, err)
	_, _, err = s.Open("gallery")
	assert.Error(t, err)
}
