package polymarket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

func TestExtractMarketID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "event url",
			input: "https://polymarket.com/event/will-trump-win-2024",
			want:  "will-trump-win-2024",
		},
		{
			name:  "market url",
			input: "https://polymarket.com/market/will-trump-win-2024",
			want:  "will-trump-win-2024",
		},
		{
			name:  "event url with trailing segment",
			input: "https://polymarket.com/event/some-slug/extra",
			want:  "some-slug",
		},
		{
			name:  "event url with query",
			input: "https://polymarket.com/event/some-slug?tid=1",
			want:  "some-slug",
		},
		{
			name:  "bare slug",
			input: "will-trump-win-2024",
			want:  "will-trump-win-2024",
		},
		{
			name:  "single path segment",
			input: "https://polymarket.com/some-slug",
			want:  "some-slug",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "unknown path prefix",
			input:   "https://polymarket.com/foo/bar",
			wantErr: true,
		},
		{
			name:    "root url",
			input:   "https://polymarket.com/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractMarketID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidMarketURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
