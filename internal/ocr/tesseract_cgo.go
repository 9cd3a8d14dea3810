//go:build cgo

package ocr

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

const backendName = "gosseract"

type gosseractClient struct {
	c *gosseract.Client
}

func newClient(cfg Config) (client, error) {
	c := gosseract.NewClient()

	if cfg.TessdataPrefix != "" {
		if err := c.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := c.SetLanguage(cfg.Languages()...); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if cfg.Whitelist != "" {
		if err := c.SetWhitelist(cfg.Whitelist); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}

	if c.Version() == "" {
		c.Close()
		return nil, ErrUnavailable
	}
	return &gosseractClient{c: c}, nil
}

func (g *gosseractClient) Text(png []byte) (string, error) {
	if err := g.c.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	return g.c.Text()
}

func (g *gosseractClient) Version() string { return g.c.Version() }

func (g *gosseractClient) Close() error { return g.c.Close() }
