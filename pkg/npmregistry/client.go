package npmregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/mod/semver"
)

const (
	defaultRegistry   = "https://registry.npmjs.org"
	httpClientTimeout = 30 * time.Second
	defaultUserAgent  = "tsexports/0.1.0"
	maxTarballSize    = 256 * 1024 * 1024
)

// Client downloads package tarballs and metadata from npm registries.
type Client struct {
	httpClient *http.Client
	userAgent  string
	registries []string
	log        *slog.Logger
}

// NewClient creates a Client for the given registry chain. With no
// registries it reads NPM_CONFIG_REGISTRY, a comma- or pipe-separated list,
// and falls back to the public registry.
func NewClient(registries ...string) *Client {
	if len(registries) == 0 {
		env := os.Getenv("NPM_CONFIG_REGISTRY")
		if env == "" {
			env = os.Getenv("npm_config_registry")
		}
		registries = []string{env}
	}

	var chain []string
	for _, r := range registries {
		for _, p := range strings.Split(strings.ReplaceAll(r, "|", ","), ",") {
			if trimmed := strings.TrimRight(strings.TrimSpace(p), "/"); trimmed != "" {
				chain = append(chain, trimmed)
			}
		}
	}
	if len(chain) == 0 {
		chain = []string{defaultRegistry}
	}

	return &Client{
		httpClient: &http.Client{Timeout: httpClientTimeout},
		userAgent:  defaultUserAgent,
		registries: chain,
		log:        slog.Default(),
	}
}

// WithLogger sets the logger used to report registry fallbacks.
func (c *Client) WithLogger(log *slog.Logger) *Client {
	if log != nil {
		c.log = log
	}
	return c
}

// Registries returns the registry chain in the order it is tried.
func (c *Client) Registries() []string {
	return append([]string(nil), c.registries...)
}

// TarballURL is the conventional tarball location of name@version on
// registry. Scoped packages keep their scope in the path but not in the file
// name.
func TarballURL(registry, name, version string) string {
	base := name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		base = name[i+1:]
	}
	return fmt.Sprintf("%s/%s/-/%s-%s.tgz", registry, name, base, version)
}

// DownloadTarball fetches the tarball of name@version from the registry
// chain. A registry answering 404 or 410 or failing to connect is skipped.
func (c *Client) DownloadTarball(ctx context.Context, name, version string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	for i, registry := range c.registries {
		data, tryNext, err := c.fetch(ctx, TarballURL(registry, name, version))
		if err == nil {
			c.log.Debug("tarball downloaded", "registry", registry, "package", name, "version", version, "size", humanize.IBytes(uint64(len(data))))
			return data, nil
		}
		if tryNext && i < len(c.registries)-1 {
			c.log.Debug("registry miss, trying next", "registry", registry, "package", name, "version", version, "error", err)
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("package %s@%s not found on any registry", name, version)
}

// packument is the subset of registry package metadata used here.
type packument struct {
	DistTags map[string]string          `json:"dist-tags"`
	Versions map[string]json.RawMessage `json:"versions"`
}

// ResolveVersion turns a dist-tag such as "latest" into a concrete version.
// Concrete versions are checked against the published list.
func (c *Client) ResolveVersion(ctx context.Context, name, spec string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	var lastErr error
	for i, registry := range c.registries {
		data, tryNext, err := c.fetch(ctx, registry+"/"+strings.Replace(name, "/", "%2f", 1))
		if err != nil {
			lastErr = err
			if tryNext && i < len(c.registries)-1 {
				continue
			}
			return "", err
		}

		var meta packument
		if err := json.Unmarshal(data, &meta); err != nil {
			return "", fmt.Errorf("decoding metadata for %s: %w", name, err)
		}
		if v, ok := meta.DistTags[spec]; ok {
			return v, nil
		}
		if _, ok := meta.Versions[spec]; ok {
			return spec, nil
		}
		return "", fmt.Errorf("package %s has no version or tag %q (latest is %s)", name, spec, latest(meta))
	}
	return "", lastErr
}

// latest returns the highest published version by semver precedence.
func latest(meta packument) string {
	best := ""
	for v := range meta.Versions {
		if !semver.IsValid("v" + v) {
			continue
		}
		if best == "" || semver.Compare("v"+v, "v"+best) > 0 {
			best = v
		}
	}
	return best
}

func validateName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.Contains(name, "..") || strings.Count(name, "/") > 1 ||
		(strings.Contains(name, "/") && !strings.HasPrefix(name, "@")) {
		return fmt.Errorf("invalid package name %q", name)
	}
	return nil
}

// fetch performs a single HTTP GET for the given URL.
// It returns (data, tryNext, error).
// tryNext signals that the caller should attempt the next registry in the chain.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level error; let the caller decide whether to try the next registry.
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, true, fmt.Errorf("registry returned %d for %s", resp.StatusCode, url)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTarballSize+1))
	if err != nil {
		return nil, false, fmt.Errorf("reading response body from %s: %w", url, err)
	}
	if len(data) > maxTarballSize {
		return nil, false, fmt.Errorf("response from %s exceeds %s", url, humanize.IBytes(maxTarballSize))
	}

	return data, false, nil
}
