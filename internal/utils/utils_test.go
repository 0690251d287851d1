package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1", 4)
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "secret1"))
	assert.Error(t, CheckPassword(hash, "secret2"))
}

func TestGenerateAndHashToken(t *testing.T) {
	a, err := GenerateToken(32)
	require.NoError(t, err)
	b, err := GenerateToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	assert.Len(t, HashToken(a), 64)
	assert.Equal(t, HashToken(a), HashToken(a))
}

func TestEmailLocalPart(t *testing.T) {
	assert.Equal(t, "taro", EmailLocalPart("taro@example.com"))
	assert.Equal(t, "noat", EmailLocalPart("noat"))
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("SNS運用サポート", "sns"))
	assert.False(t, ContainsFold("ロゴデザイン", "SNS"))
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		filename string
		size     int64
		wantErr  error
	}{
		{name: "png", data: pngHeader, filename: "avatar.PNG", size: 16},
		{name: "too large", data: pngHeader, filename: "avatar.png", size: 1 << 30, wantErr: ErrFileTooLarge},
		{name: "wrong extension", data: pngHeader, filename: "avatar.jpg", size: 16, wantErr: ErrInvalidExtension},
		{name: "not an image", data: []byte("hello world"), filename: "avatar.png", size: 11, wantErr: ErrInvalidContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.data)
			contentType, err := validateImage(&ImageUpload{Reader: r, Filename: tt.filename, Size: tt.size}, 1<<20)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "image/png", contentType)
			pos, _ := r.Seek(0, 1)
			assert.Zero(t, pos, "reader is rewound")
		})
	}
}
