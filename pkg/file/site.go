package file

import (
	"net/url"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/samueltorres/lolcounter/pkg/site"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// SiteService serves site settings read from a config file and reloads
// them whenever the file changes.
type SiteService struct {
	viper    *viper.Viper
	settings *site.Settings
	mux      *sync.RWMutex
	logger   *logrus.Logger
}

func NewSiteService(file string, logger *logrus.Logger) (*SiteService, error) {
	v := viper.New()
	v.SetConfigFile(file)
	err := v.ReadInConfig()
	if err != nil {
		return nil, errors.Wrap(err, "error reading in site file config")
	}

	ss := &SiteService{
		viper:  v,
		mux:    &sync.RWMutex{},
		logger: logger,
	}

	err = ss.loadSettings()
	if err != nil {
		return nil, errors.Wrap(err, "error loading site settings")
	}

	return ss, nil
}

// Watch reloads the settings on file changes. Invalid files are logged and
// the previous settings are kept.
func (ss *SiteService) Watch() {
	ss.viper.OnConfigChange(func(e fsnotify.Event) {
		ss.logger.WithField("file", e.Name).Info("site file changed")
		err := ss.loadSettings()
		if err != nil {
			ss.logger.WithError(err).Error("could not reload site settings")
		}
	})
	ss.viper.WatchConfig()
}

func (ss *SiteService) Settings() (*site.Settings, error) {
	ss.mux.RLock()
	defer ss.mux.RUnlock()

	if ss.settings == nil {
		return nil, site.ErrNoSettings
	}
	expanded := ss.settings.Expand()
	return &expanded, nil
}

func (ss *SiteService) loadSettings() error {
	var settings site.Settings
	err := ss.viper.Unmarshal(&settings)
	if err != nil {
		return errors.Wrap(err, "error on site config unmarshal")
	}

	err = validateSettings(settings)
	if err != nil {
		return errors.Wrap(err, "site file is invalid")
	}

	ss.mux.Lock()
	defer ss.mux.Unlock()
	ss.settings = &settings

	return nil
}

func validateSettings(settings site.Settings) error {
	if settings.Token.Address == "" {
		return errors.Errorf("token address is empty")
	}

	if buyURL := settings.Expand().BuyURL; buyURL != "" && !validURL(buyURL) {
		return errors.Errorf("invalid buy url (%s)", settings.BuyURL)
	}

	names := make(map[string]bool, len(settings.Links))
	for i, l := range settings.Links {
		if l.Name == "" {
			return errors.Errorf("link with no name (%d)", i)
		}

		if _, exists := names[l.Name]; exists {
			return errors.Errorf("duplicated link name (%s)", l.Name)
		}
		names[l.Name] = true

		if !validURL(l.URL) {
			return errors.Errorf("invalid link url - link (%s)", l.Name)
		}
	}

	return nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
