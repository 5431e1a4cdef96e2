package redsys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFolderPayURL(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{
			name:   "default param",
			config: Config{PayURL: "https://pay.example.com/tpv"},
			want:   "https://pay.example.com/tpv?expediente=42",
		},
		{
			name:   "existing query string",
			config: Config{PayURL: "https://pay.example.com/tpv?lang=es"},
			want:   "https://pay.example.com/tpv?lang=es&expediente=42",
		},
		{
			name:   "custom param",
			config: Config{PayURL: "https://pay.example.com/tpv", FolderParam: "folder"},
			want:   "https://pay.example.com/tpv?folder=42",
		},
		{
			name:   "not configured",
			config: Config{},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.config)
			assert.Equal(t, tt.want, client.FolderPayURL(42))
		})
	}
}
