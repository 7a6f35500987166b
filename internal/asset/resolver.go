package asset

import (
	"context"
	"log/slog"

	"github.com/joescharf/auditwise/internal/figma"
	"github.com/joescharf/auditwise/internal/models"
)

// Resolution is what a resolver produced for one submission. Both fields may
// be empty, in which case the generic prompt is used.
type Resolution struct {
	Image      *Image
	ContextURL string
}

// FigmaFetcher renders a Figma frame.
type FigmaFetcher interface {
	FetchImage(ctx context.Context, ref figma.Ref, token string) (*figma.Image, error)
}

// Resolver picks the acquisition strategy for a DesignInput.
type Resolver struct {
	Figma  FigmaFetcher
	Logger *slog.Logger
}

// NewResolver creates a Resolver. A nil fetcher uses the default Figma client.
func NewResolver(f FigmaFetcher) *Resolver {
	if f == nil {
		f = figma.NewClient("", nil)
	}
	return &Resolver{Figma: f, Logger: slog.Default()}
}

// Resolve never fails: acquisition errors are logged and downgrade the scan to
// the text-only path.
func (r *Resolver) Resolve(ctx context.Context, in models.DesignInput) Resolution {
	switch in.Type {
	case models.DesignTypeFigma:
		return Resolution{Image: r.figmaImage(ctx, in)}
	case models.DesignTypePNG, models.DesignTypePDF:
		if in.FileData == "" {
			return Resolution{}
		}
		img, err := ParseDataURL(in.FileData)
		if err != nil {
			r.Logger.Warn("unreadable design payload", "file", in.FileName, "error", err)
			return Resolution{}
		}
		return Resolution{Image: img}
	case models.DesignTypeURL:
		return Resolution{ContextURL: in.URL}
	}
	return Resolution{}
}

func (r *Resolver) figmaImage(ctx context.Context, in models.DesignInput) *Image {
	if in.URL == "" || in.FigmaToken == "" || r.Figma == nil {
		return nil
	}

	ref, err := figma.ParseURL(in.URL)
	if err != nil {
		r.Logger.Warn("figma link not recognized", "url", in.URL, "error", err)
		return nil
	}

	img, err := r.Figma.FetchImage(ctx, ref, in.FigmaToken)
	if err != nil {
		r.Logger.Warn("figma render failed", "file_key", ref.FileKey, "error", err)
		return nil
	}
	return &Image{MIMEType: img.MIMEType, Data: img.Data}
}
