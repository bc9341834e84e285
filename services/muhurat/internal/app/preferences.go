package app

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"muhuratai/pkg/domain"
)

// PreferenceView is the caller's stored preference and the format it resolves to.
type PreferenceView struct {
	Preference *domain.ReportPreference `json:"preference,omitempty"`
	Format     domain.ReportFormat      `json:"format"`
}

// ListReportFormats returns the active report skins, default first.
func (a *App) ListReportFormats(ctx context.Context) ([]domain.ReportFormat, error) {
	formats, err := a.store.ListReportFormats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list report formats: %w", err)
	}
	return formats, nil
}

// GetReportPreference returns the caller's preference. Without one, or when the
// preferred format is no longer active, the default format is returned.
func (a *App) GetReportPreference(ctx context.Context, caller Caller) (PreferenceView, error) {
	if caller.UserID == "" {
		return PreferenceView{}, ErrForbidden
	}
	var (
		pref    domain.ReportPreference
		hasPref bool
		formats []domain.ReportFormat
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pref, hasPref, err = a.store.GetReportPreference(gctx, caller.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		formats, err = a.store.ListReportFormats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return PreferenceView{}, fmt.Errorf("load report preference: %w", err)
	}

	view := PreferenceView{}
	if hasPref {
		view.Preference = &pref
	}
	for _, f := range formats {
		if hasPref && f.ID == pref.ReportFormatID {
			view.Format = f
			return view, nil
		}
	}
	for _, f := range formats {
		if f.IsDefault {
			view.Format = f
			break
		}
	}
	if view.Format.ID == "" && len(formats) > 0 {
		view.Format = formats[0]
	}
	return view, nil
}

// SetReportPreference stores the caller's preferred active format.
func (a *App) SetReportPreference(ctx context.Context, caller Caller, formatID string) (PreferenceView, error) {
	if caller.UserID == "" {
		return PreferenceView{}, ErrForbidden
	}
	formatID = strings.TrimSpace(formatID)
	if formatID == "" {
		return PreferenceView{}, validationError("reportFormatId is required")
	}
	format, err := a.activeFormat(ctx, formatID)
	if err != nil {
		return PreferenceView{}, err
	}
	pref := domain.ReportPreference{UserID: caller.UserID, ReportFormatID: format.ID, UpdatedAt: a.now().UTC()}
	if err := a.store.SaveReportPreference(ctx, pref); err != nil {
		return PreferenceView{}, fmt.Errorf("save report preference: %w", err)
	}
	return PreferenceView{Preference: &pref, Format: format}, nil
}

func (a *App) activeFormat(ctx context.Context, id string) (domain.ReportFormat, error) {
	formats, err := a.ListReportFormats(ctx)
	if err != nil {
		return domain.ReportFormat{}, err
	}
	for _, f := range formats {
		if f.ID == id {
			return f, nil
		}
	}
	return domain.ReportFormat{}, validationError("unknown report format %q", id)
}
