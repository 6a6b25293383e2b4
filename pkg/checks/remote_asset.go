package checks

import (
	"context"
	"regexp"
	"strings"

	"github.com/walteh/tmplcheck/pkg/check"
	"github.com/walteh/tmplcheck/pkg/node"
	"github.com/walteh/tmplcheck/pkg/offense"
)

const (
	RemoteAssetName = "RemoteAsset"

	DefaultCDNRoot = "https://cdn.shopify.com/"
)

var (
	assetTags = map[string]bool{"img": true, "script": true, "link": true, "source": true}

	protocol     = regexp.MustCompile(`^(https?:)?//`)
	absolutePath = regexp.MustCompile(`(?i)^/[^/]`)

	assetURLFilters = []string{
		"asset_url",
		"asset_img_url",
		"file_img_url",
		"file_url",
		"global_asset_url",
		"shopify_asset_url",
	}
)

// RemoteAsset reports assets loaded from hosts other than the CDN.
//
// Options:
//
//	cdn_root               prefix of URLs served by the CDN
//	ignore_relative_paths  when false, relative paths are reported too
type RemoteAsset struct {
	*check.Base
}

func NewRemoteAsset() *RemoteAsset {
	b := check.NewBase(RemoteAssetName, offense.SeveritySuggestion, "html", "performance")
	b.Configure(map[string]any{
		"cdn_root":              DefaultCDNRoot,
		"ignore_relative_paths": true,
	})
	return &RemoteAsset{Base: b}
}

func (me *RemoteAsset) OnElement(ctx context.Context, n *node.HTML) error {
	if !assetTags[n.Name()] {
		return nil
	}

	url, ok := n.Attribute("src")
	if !ok {
		url, _ = n.Attribute("href")
	}
	if url == "" || me.local(url) {
		return nil
	}

	if n.Name() == "link" {
		if rel, _ := n.Attribute("rel"); rel != "stylesheet" {
			return nil
		}
	}

	return me.Report(ctx, "Asset should be served by the Shopify CDN for better performance.", n)
}

func (me *RemoteAsset) local(url string) bool {
	switch {
	case strings.HasPrefix(url, me.StringOption("cdn_root", DefaultCDNRoot)):
		return true
	case absolutePath.MatchString(url):
		return true
	case me.ignoreRelative() && relativePath(url):
		return true
	case strings.HasPrefix(url, "{{"):
		return hostedByFilter(url) || strings.Contains(url, "settings.")
	}
	return false
}

func (me *RemoteAsset) ignoreRelative() bool {
	v, ok := me.Options()["ignore_relative_paths"].(bool)
	return !ok || v
}

func relativePath(url string) bool {
	return !protocol.MatchString(url) && url[0] != '/' && url[0] != '{'
}

func hostedByFilter(url string) bool {
	for _, filter := range assetURLFilters {
		if strings.Contains(url, filter) {
			return true
		}
	}
	return false
}
