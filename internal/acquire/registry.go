package acquire

import (
	"fmt"
	"net/http"
	"time"

	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/media"
)

// Deps are the collaborators providers are built from.
type Deps struct {
	HTTPClient *http.Client
	Transcoder media.Transcoder
	Downloader media.Downloader
}

// NewChainFromConfig builds the chain in the configured provider order.
func NewChainFromConfig(cfg *config.AcquireConfig, d Deps) (*Chain, error) {
	client := d.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}

	fetcher := NewFetcher(client, cfg.UserAgent)

	var providers []Provider
	for _, name := range cfg.Providers {
		var p Provider
		switch name {
		case "upload":
			p = NewUploadProvider(d.Transcoder)
		case "direct":
			p = NewDirectProvider(d.Transcoder, fetcher)
		case "ytdlp-cookies":
			p = NewYtDlpCookiesProvider(d.Downloader, cfg.CookiesFile, cfg.UserAgent)
		case "ytdlp":
			p = NewYtDlpProvider(d.Downloader, cfg.UserAgent)
		case "rapidapi-mp36":
			p = NewMP36Provider(client, cfg.RapidAPIKey, "", cfg.UserAgent)
		case "rapidapi-ytstream":
			p = NewYTStreamProvider(client, cfg.RapidAPIKey, "", cfg.UserAgent)
		case "rapidapi-ytapi":
			p = NewYTAPIProvider(client, cfg.RapidAPIKey, "", cfg.UserAgent)
		case "cobalt":
			p = NewCobaltProvider(client, cfg.CobaltInstances, cfg.UserAgent)
		case "browser":
			p = NewBrowserProvider(cfg.UserAgent, time.Duration(cfg.BrowserTimeoutSeconds)*time.Second, "")
		default:
			return nil, fmt.Errorf("unknown acquisition provider %q", name)
		}
		providers = append(providers, p)
	}
	return NewChain(providers, fetcher, cfg.MinBytes), nil
}
