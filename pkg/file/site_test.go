package file

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNullLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

func TestNewSiteService(t *testing.T) {
	testCases := []struct {
		desc    string
		file    string
		wantErr bool
	}{
		{
			desc: "valid file",
			file: "testdata/site.yaml",
		},
		{
			desc:    "missing file",
			file:    "testdata/nope.yaml",
			wantErr: true,
		},
		{
			desc:    "duplicated links",
			file:    "testdata/duplicated_links.yaml",
			wantErr: true,
		},
		{
			desc:    "missing token address",
			file:    "testdata/missing_address.yaml",
			wantErr: true,
		},
		{
			desc:    "invalid link url",
			file:    "testdata/invalid_url.yaml",
			wantErr: true,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			_, err := NewSiteService(tC.file, newNullLogger())

			if tC.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSiteService_Settings(t *testing.T) {
	ss, err := NewSiteService("testdata/site.yaml", newNullLogger())
	require.NoError(t, err)

	got, err := ss.Settings()
	require.NoError(t, err)

	assert.Equal(t, "LOL", got.Token.Symbol)
	assert.Equal(t, "https://jup.ag/swap/USDC-53Xy4g1RJnGR6saaJRDNoo1rYTGZ3W5U321EDdSa5BGD", got.BuyURL)
	require.Len(t, got.Links, 3)
	assert.Equal(t, "Telegram", got.Links[1].Name)
	assert.Equal(t, "https://t.me/LOLGUYSOL", got.Links[1].URL)
}

func TestSiteService_Watch_ReloadsSettings(t *testing.T) {
	// arrange
	dir, err := ioutil.TempDir("", "site")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "site.yaml")
	require.NoError(t, ioutil.WriteFile(file, []byte("token:\n  symbol: LOL\n  address: first\n"), 0644))

	ss, err := NewSiteService(file, newNullLogger())
	require.NoError(t, err)
	ss.Watch()

	// act
	require.NoError(t, ioutil.WriteFile(file, []byte("token:\n  symbol: LOL\n  address: second\n"), 0644))

	// assert
	assert.Eventually(t, func() bool {
		got, err := ss.Settings()
		return err == nil && got.Token.Address == "second"
	}, 5*time.Second, 50*time.Millisecond)
}
