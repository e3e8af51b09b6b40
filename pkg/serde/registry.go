package serde

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/edgeflare/silver/pkg/httputil"
)

// Registry resolves and registers Avro schemas by numeric id.
type Registry interface {
	// SchemaByID returns the schema text the id refers to.
	SchemaByID(ctx context.Context, id uint32) (string, error)
	// Register stores schema under subject, if not already stored, and returns its id.
	Register(ctx context.Context, subject, schema string) (uint32, error)
}

// Registry flavors accepted by NewRegistry.
const (
	FlavorApicurio  = "apicurio"
	FlavorConfluent = "confluent"
)

// RegistryConfig configures a registry client.
type RegistryConfig struct {
	URL     string
	Flavor  string
	GroupID string
	Timeout time.Duration
	Logger  httputil.Logger
}

// NewRegistry returns the client for cfg.Flavor; an empty flavor means Apicurio.
func NewRegistry(cfg RegistryConfig) (Registry, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("schema registry url is required")
	}
	switch strings.ToLower(cfg.Flavor) {
	case "", FlavorApicurio:
		return NewApicurioRegistry(cfg), nil
	case FlavorConfluent:
		return NewConfluentRegistry(cfg), nil
	default:
		return nil, fmt.Errorf("unknown schema registry flavor %q", cfg.Flavor)
	}
}

func (c RegistryConfig) request(method, target string) httputil.RequestConfig {
	rc := httputil.DefaultRequestConfig(method, target)
	if c.Timeout > 0 {
		rc.Timeout = c.Timeout
	}
	rc.Logger = c.Logger
	return rc
}

// ApicurioRegistry talks to the Apicurio Registry v2 API. Ids on the wire are
// content ids, which is what Apicurio's Confluent-compatible serdes write.
type ApicurioRegistry struct {
	cfg     RegistryConfig
	baseURL string
}

func NewApicurioRegistry(cfg RegistryConfig) *ApicurioRegistry {
	return &ApicurioRegistry{cfg: cfg, baseURL: strings.TrimRight(cfg.URL, "/")}
}

func (r *ApicurioRegistry) SchemaByID(ctx context.Context, id uint32) (string, error) {
	target := r.baseURL + "/ids/contentIds/" + strconv.FormatUint(uint64(id), 10)
	resp, err := httputil.Request(ctx, r.cfg.request(http.MethodGet, target), nil)
	if err != nil {
		return "", fmt.Errorf("fetch content %d: %w", id, err)
	}
	return string(resp.Body), nil
}

func (r *ApicurioRegistry) Register(ctx context.Context, subject, schema string) (uint32, error) {
	group := r.cfg.GroupID
	if group == "" {
		group = "default"
	}
	target := fmt.Sprintf("%s/groups/%s/artifacts?ifExists=RETURN_OR_UPDATE", r.baseURL, url.PathEscape(group))

	rc := r.cfg.request(http.MethodPost, target)
	rc.Headers = map[string][]string{
		"Content-Type":            {"application/json"},
		"X-Registry-ArtifactId":   {subject},
		"X-Registry-ArtifactType": {"AVRO"},
	}
	resp, err := httputil.Request(ctx, rc, schema)
	if err != nil {
		return 0, fmt.Errorf("register artifact %s/%s: %w", group, subject, err)
	}

	var meta struct {
		ContentID *uint32 `json:"contentId"`
	}
	if err := json.Unmarshal(resp.Body, &meta); err != nil {
		return 0, fmt.Errorf("decode artifact metadata: %w", err)
	}
	if meta.ContentID == nil {
		return 0, fmt.Errorf("artifact %s/%s: response has no contentId", group, subject)
	}
	return *meta.ContentID, nil
}

// ConfluentRegistry talks to the Confluent Schema Registry REST API.
type ConfluentRegistry struct {
	cfg     RegistryConfig
	baseURL string
}

func NewConfluentRegistry(cfg RegistryConfig) *ConfluentRegistry {
	return &ConfluentRegistry{cfg: cfg, baseURL: strings.TrimRight(cfg.URL, "/")}
}

const confluentContentType = "application/vnd.schemaregistry.v1+json"

func (r *ConfluentRegistry) SchemaByID(ctx context.Context, id uint32) (string, error) {
	target := r.baseURL + "/schemas/ids/" + strconv.FormatUint(uint64(id), 10)
	resp, err := httputil.Request(ctx, r.cfg.request(http.MethodGet, target), nil)
	if err != nil {
		return "", fmt.Errorf("fetch schema %d: %w", id, err)
	}

	var body struct {
		Schema string `json:"schema"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("decode schema %d: %w", id, err)
	}
	return body.Schema, nil
}

func (r *ConfluentRegistry) Register(ctx context.Context, subject, schema string) (uint32, error) {
	target := r.baseURL + "/subjects/" + url.PathEscape(subject) + "/versions"
	rc := r.cfg.request(http.MethodPost, target)
	rc.Headers = map[string][]string{"Content-Type": {confluentContentType}}

	resp, err := httputil.Request(ctx, rc, map[string]string{"schema": schema})
	if err != nil {
		return 0, fmt.Errorf("register subject %s: %w", subject, err)
	}

	var body struct {
		ID uint32 `json:"id"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return 0, fmt.Errorf("decode registration of %s: %w", subject, err)
	}
	return body.ID, nil
}
