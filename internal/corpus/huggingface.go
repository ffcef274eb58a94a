package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"supportbot/internal/domain"
)

// maxPageSize is the largest page the datasets-server /rows endpoint returns.
const maxPageSize = 100

// HuggingFaceConfig locates a dataset on the Hugging Face datasets-server.
type HuggingFaceConfig struct {
	BaseURL  string
	Dataset  string
	Config   string
	Split    string
	TokenEnv string
	PageSize int
	Timeout  time.Duration
	// Limit caps the number of rows fetched; zero fetches the whole split.
	Limit int
}

// HuggingFace pages through the rows of a dataset split whose rows carry
// question and answer columns.
type HuggingFace struct {
	cfg    HuggingFaceConfig
	token  string
	client *http.Client
}

func NewHuggingFace(cfg HuggingFaceConfig) *HuggingFace {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://datasets-server.huggingface.co"
	}
	if cfg.Dataset == "" {
		cfg.Dataset = "MakTek/Customer_support_faqs_dataset"
	}
	if cfg.Config == "" {
		cfg.Config = "default"
	}
	if cfg.Split == "" {
		cfg.Split = "train"
	}
	if cfg.PageSize <= 0 || cfg.PageSize > maxPageSize {
		cfg.PageSize = maxPageSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	var token string
	if cfg.TokenEnv != "" {
		token = os.Getenv(cfg.TokenEnv)
	}
	return &HuggingFace{cfg: cfg, token: token, client: &http.Client{Timeout: cfg.Timeout}}
}

func (h *HuggingFace) Name() string { return "huggingface:" + h.cfg.Dataset }

type rowsPage struct {
	Rows []struct {
		RowIdx int             `json:"row_idx"`
		Row    domain.FAQEntry `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

func (h *HuggingFace) Load(ctx context.Context) ([]domain.FAQEntry, error) {
	var entries []domain.FAQEntry
	offset := 0
	for {
		length := h.cfg.PageSize
		if h.cfg.Limit > 0 && offset+length > h.cfg.Limit {
			length = h.cfg.Limit - offset
		}
		page, err := h.fetch(ctx, offset, length)
		if err != nil {
			return nil, err
		}
		for _, r := range page.Rows {
			entries = append(entries, r.Row)
		}
		offset += len(page.Rows)
		if len(page.Rows) == 0 || offset >= page.NumRowsTotal {
			break
		}
		if h.cfg.Limit > 0 && offset >= h.cfg.Limit {
			break
		}
	}
	return clean(entries)
}

func (h *HuggingFace) fetch(ctx context.Context, offset, length int) (*rowsPage, error) {
	q := url.Values{}
	q.Set("dataset", h.cfg.Dataset)
	q.Set("config", h.cfg.Config)
	q.Set("split", h.cfg.Split)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(length))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.cfg.BaseURL+"/rows?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rows at offset %d: %w", offset, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch rows at offset %d: %s: %s", offset, resp.Status, body)
	}
	var page rowsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return &page, nil
}
