package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jonathan/report-composer/internal/backend"
	"github.com/jonathan/report-composer/internal/config"
	"github.com/jonathan/report-composer/internal/fetch"
	"github.com/jonathan/report-composer/internal/pipeline"
	"github.com/jonathan/report-composer/internal/rendering"
	"github.com/jonathan/report-composer/internal/results"
	"github.com/jonathan/report-composer/internal/schemas"
	"github.com/jonathan/report-composer/internal/submission"
	"github.com/jonathan/report-composer/internal/types"
)

// newBackendClient creates the order backend client. Requests are signed when
// BACKEND_JWT_SECRET is set.
func newBackendClient(cfg config.Config) (*backend.Client, error) {
	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("backend URL is required (set BACKEND_URL or backend_url)")
	}

	var signer *backend.TokenSigner
	jwtCfg, err := config.NewJWTConfig()
	switch {
	case err == nil:
		signer = backend.NewTokenSigner(jwtCfg)
	case errors.Is(err, config.ErrJWTSecretMissing):
		logger.Debug("Backend requests are not signed")
	default:
		return nil, err
	}

	fetchOpts := fetch.DefaultOptions()
	fetchOpts.Timeout = cfg.FetchTimeout()
	fetchOpts.MaxBytes = cfg.MaxUploadBytes

	return backend.New(cfg.BackendURL, backend.Options{
		Timeout:      cfg.FetchTimeout(),
		Signer:       signer,
		FetchOptions: fetchOpts,
		Logger:       logger,
	})
}

// engineOptions maps configuration onto pipeline options.
func engineOptions(cfg config.Config) pipeline.Options {
	cover := rendering.DefaultOptions()
	cover.LogoPath = cfg.LogoPath
	if cfg.Locale != "" {
		cover.Locale = cfg.Locale
	}
	if cfg.DateLayout != "" {
		cover.DateLayout = cfg.DateLayout
	}
	return pipeline.Options{
		Cover:        cover,
		SummaryLabel: cfg.SummaryLabel,
		Concurrency:  cfg.UploadConcurrency,
		Logger:       logger,
	}
}

// localOrders serves an order and service catalog read from disk.
type localOrders struct {
	order   *types.Order
	catalog types.ServiceCatalog
}

// loadLocalOrders reads a schema-validated order file and an optional catalog file
// mapping service ids to {"title": ...}.
func loadLocalOrders(orderPath, catalogPath string) (*localOrders, error) {
	data, err := os.ReadFile(orderPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read order file: %w", err)
	}
	if err := schemas.ValidateOrder(data); err != nil {
		return nil, err
	}

	var order types.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("failed to parse order file: %w", err)
	}
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}

	catalog := types.ServiceCatalog{}
	if catalogPath != "" {
		data, err := os.ReadFile(catalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file: %w", err)
		}
		if err := json.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("failed to parse catalog file: %w", err)
		}
	}
	return &localOrders{order: &order, catalog: catalog}, nil
}

func (l *localOrders) FetchOrder(_ context.Context, orderID types.ID) (*types.Order, error) {
	if l.order.ID != orderID {
		return nil, fmt.Errorf("order file holds order %s, session names %s", l.order.ID, orderID)
	}
	return l.order, nil
}

func (l *localOrders) FetchServiceCatalog(context.Context) (types.ServiceCatalog, error) {
	return l.catalog, nil
}

// offlineBackend fetches remote artifacts directly and refuses uploads.
type offlineBackend struct {
	*fetch.Client
}

func (offlineBackend) UploadServiceResult(context.Context, types.ID, types.ID, backend.ServiceUpload) (*backend.Response, error) {
	return nil, errors.New("uploads require a backend URL")
}

func (offlineBackend) UploadSummaryResult(context.Context, types.ID, types.ID, backend.SummaryUpload) (*backend.Response, error) {
	return nil, errors.New("uploads require a backend URL")
}

var _ submission.Backend = offlineBackend{}

// sessionInput is what compose, cover and submit share: the order source, the
// backend and the replayed session.
type sessionInput struct {
	file    *pipeline.SessionFile
	backend pipeline.Backend
	session pipeline.Session
}

// openSessionInput loads the session file and replays it onto a tracker. With
// orderPath set the order comes from disk, otherwise from the backend.
func openSessionInput(ctx context.Context, cfg config.Config, sessionPath, orderPath, catalogPath string, requireBackend bool) (*sessionInput, error) {
	sf, err := pipeline.LoadSessionFile(sessionPath)
	if err != nil {
		return nil, err
	}

	var (
		b      pipeline.Backend
		source pipeline.OrderSource
	)
	if cfg.BackendURL != "" || requireBackend {
		client, err := newBackendClient(cfg)
		if err != nil {
			return nil, err
		}
		b, source = client, client
	} else {
		fetchOpts := fetch.DefaultOptions()
		fetchOpts.Timeout = cfg.FetchTimeout()
		b = offlineBackend{Client: fetch.NewClient(fetchOpts)}
	}

	if orderPath != "" {
		local, err := loadLocalOrders(orderPath, catalogPath)
		if err != nil {
			return nil, err
		}
		source = local
	}
	if source == nil {
		return nil, fmt.Errorf("either --order or a backend URL is required")
	}

	sess, err := pipeline.OpenSession(ctx, source, types.NewID(sf.OrderID), types.NewID(sf.CandidateID),
		results.WithMaxFileSize(cfg.MaxUploadBytes))
	if err != nil {
		return nil, err
	}

	edits, err := sf.Edits()
	if err != nil {
		return nil, err
	}
	if err := pipeline.ApplyEdits(sess.Tracker, edits); err != nil {
		return nil, err
	}

	return &sessionInput{file: sf, backend: b, session: sess}, nil
}
