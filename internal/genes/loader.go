package genes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Loader populates the gene store from the HGNC complete set.
type Loader struct {
	store  *RedisStore
	client *http.Client
	log    *zap.Logger
}

func NewLoader(store *RedisStore, client *http.Client, log *zap.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Loader{store: store, client: client, log: log.Named("loader")}
}

// Fetch downloads the dataset. Both the Solr envelope
// ({"response":{"docs":[...]}}) and a bare array are accepted.
func (l *Loader) Fetch(ctx context.Context, url string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch dataset")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch dataset: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read dataset")
	}
	return decodeDocs(body)
}

func decodeDocs(body []byte) ([]json.RawMessage, error) {
	var docs []json.RawMessage
	if err := json.Unmarshal(body, &docs); err == nil {
		return docs, nil
	}
	var envelope struct {
		Response struct {
			Docs []json.RawMessage `json:"docs"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrap(err, "decode dataset")
	}
	return envelope.Response.Docs, nil
}

// Load fetches url and stores every record, optionally wiping existing genes first.
func (l *Loader) Load(ctx context.Context, url string, replace bool) (int, error) {
	docs, err := l.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}
	if replace {
		n, err := l.store.DeleteAll(ctx)
		if err != nil {
			return 0, err
		}
		l.log.Info("deleted existing genes", zap.Int("count", n))
	}
	n, err := l.store.PutGenes(ctx, docs)
	if err != nil {
		return 0, err
	}
	if skipped := len(docs) - n; skipped > 0 {
		l.log.Warn("skipped records without an id", zap.Int("count", skipped))
	}
	l.log.Info("loaded genes", zap.Int("count", n), zap.String("url", url))
	return n, nil
}
