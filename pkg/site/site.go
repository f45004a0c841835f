package site

import (
	"errors"
	"strings"
)

var ErrNoSettings = errors.New("no site settings loaded")

// AddressPlaceholder is replaced by the token address in BuyURL.
const AddressPlaceholder = "{address}"

type SettingsService interface {
	Settings() (*Settings, error)
}

// Settings is what the landing page needs besides the counter.
type Settings struct {
	Token  Token  `mapstructure:"token" json:"token"`
	BuyURL string `mapstructure:"buy_url" json:"buy_url"`
	Links  []Link `mapstructure:"links" json:"links"`
}

type Token struct {
	Symbol  string `mapstructure:"symbol" json:"symbol"`
	Address string `mapstructure:"address" json:"address"`
}

type Link struct {
	Name string `mapstructure:"name" json:"name"`
	URL  string `mapstructure:"url" json:"url"`
}

// Expand returns a copy of s with the buy url placeholder filled in.
func (s Settings) Expand() Settings {
	s.BuyURL = strings.Replace(s.BuyURL, AddressPlaceholder, s.Token.Address, -1)
	s.Links = append([]Link(nil), s.Links...)
	return s
}

// Defaults are the settings the site launched with.
func Defaults() *Settings {
	return &Settings{
		Token: Token{
			Symbol:  "LOL",
			Address: "53Xy4g1RJnGR6saaJRDNoo1rYTGZ3W5U321EDdSa5BGD",
		},
		BuyURL: "https://jup.ag/swap/USDC-" + AddressPlaceholder,
		Links: []Link{
			{Name: "X Community", URL: "https://x.com/i/communities/1914104319453933789"},
			{Name: "Telegram", URL: "https://t.me/LOLGUYSOL"},
			{Name: "DexScreener", URL: "https://dexscreener.com/solana/hnmnnj7uvx988rwxjkk8ggwaqsi3e1nueecab763dqys"},
			{Name: "Origin", URL: "https://knowyourmeme.com/memes/lol-guy"},
		},
	}
}

// StaticSettings serves a fixed set of settings.
type StaticSettings struct {
	settings *Settings
}

func NewStaticSettings(settings *Settings) *StaticSettings {
	return &StaticSettings{settings: settings}
}

func (s *StaticSettings) Settings() (*Settings, error) {
	if s.settings == nil {
		return nil, ErrNoSettings
	}
	expanded := s.settings.Expand()
	return &expanded, nil
}
