package anacrolix

import (
	"context"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"

	"github.com/TellyCloud/torrent-stream-server/internal/domain/ports"
)

// ErrInvalidIdentifier is returned when an identifier is neither a magnet
// link, a raw info-hash, nor a descriptor URL.
var ErrInvalidIdentifier = errors.New("unrecognized swarm identifier")

// addTimeout caps the time we wait for the anacrolix client to accept a new
// torrent. The add call can block on an internal client mutex when the client
// is busy resolving metadata for another torrent.
const addTimeout = 10 * time.Second

type Config struct {
	DataDir string
}

type Engine struct {
	client  *torrent.Client
	dataDir string
	httpc   *http.Client
}

func New(cfg Config) (*Engine, error) {
	clientConfig := torrent.NewDefaultClientConfig()
	if cfg.DataDir != "" {
		clientConfig.DataDir = cfg.DataDir
	}

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	return &Engine{
		client:  client,
		dataDir: cfg.DataDir,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func NewWithClient(client *torrent.Client, dataDir string) *Engine {
	return &Engine{client: client, dataDir: dataDir, httpc: http.DefaultClient}
}

// Open adds the identified torrent to the client and blocks until its
// metadata is available or ctx is done. On ctx expiry the partially created
// torrent is dropped together with any data it fetched.
func (e *Engine) Open(ctx context.Context, identifier string) (ports.SwarmSession, error) {
	if e.client == nil {
		return nil, errors.New("torrent client not configured")
	}

	t, err := e.add(ctx, identifier)
	if err != nil {
		return nil, err
	}

	select {
	case <-t.GotInfo():
	case <-t.Closed():
		return nil, errors.New("torrent closed while awaiting metadata")
	case <-ctx.Done():
		e.discard(t)
		return nil, ctx.Err()
	}

	return &Session{engine: e, torrent: t, id: t.InfoHash().HexString()}, nil
}

func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	errList := e.client.Close()
	if len(errList) > 0 {
		return errList[0]
	}
	return nil
}

// add accepts a magnet link, a raw hex or base32 info-hash, or an http(s)
// URL pointing at a torrent descriptor. The add call runs in a goroutine so
// a busy client never blocks the caller past addTimeout.
func (e *Engine) add(ctx context.Context, identifier string) (*torrent.Torrent, error) {
	identifier = strings.TrimSpace(identifier)

	if strings.HasPrefix(identifier, "http://") || strings.HasPrefix(identifier, "https://") {
		return e.addFromURL(ctx, identifier)
	}

	magnet := identifier
	if !strings.HasPrefix(strings.ToLower(identifier), "magnet:") {
		hash, ok := parseInfoHash(identifier)
		if !ok {
			return nil, ErrInvalidIdentifier
		}
		magnet = "magnet:?xt=urn:btih:" + hash
	}

	type addResult struct {
		t   *torrent.Torrent
		err error
	}
	ch := make(chan addResult, 1)
	go func() {
		t, err := e.client.AddMagnet(magnet)
		ch <- addResult{t, err}
	}()

	select {
	case res := <-ch:
		return res.t, res.err
	case <-time.After(addTimeout):
		// The goroutine may still complete the add after we return; drop
		// the orphaned torrent when it does.
		go func() {
			if res := <-ch; res.t != nil {
				res.t.Drop()
			}
		}()
		return nil, errors.New("torrent client busy, try again later")
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.t != nil {
				res.t.Drop()
			}
		}()
		return nil, ctx.Err()
	}
}

func (e *Engine) addFromURL(ctx context.Context, rawURL string) (*torrent.Torrent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("descriptor fetch failed: %s", resp.Status)
	}

	mi, err := metainfo.Load(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid torrent descriptor: %w", err)
	}
	return e.client.AddTorrent(mi)
}

// discard drops a torrent and removes whatever it fetched into the data dir.
func (e *Engine) discard(t *torrent.Torrent) {
	name := ""
	select {
	case <-t.GotInfo():
		name = t.Name()
	default:
	}
	t.Drop()
	if name != "" {
		_ = removeTorrentData(e.dataDir, name)
	}
}

// NormalizeIdentifier canonicalizes a swarm identifier to its lowercase hex
// info-hash. The second return is false when the identifier is not parseable
// (e.g. a descriptor URL), in which case callers fall back to verbatim
// comparison.
func NormalizeIdentifier(raw string) (string, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", false
	}

	if strings.HasPrefix(strings.ToLower(value), "magnet:") {
		m, err := metainfo.ParseMagnetUri(value)
		if err != nil {
			return "", false
		}
		return m.InfoHash.HexString(), true
	}

	return parseInfoHash(value)
}

// parseInfoHash accepts a 40-char hex or 32-char base32 info-hash and
// returns the canonical lowercase hex form.
func parseInfoHash(value string) (string, bool) {
	value = strings.TrimPrefix(strings.ToLower(value), "urn:btih:")
	switch len(value) {
	case 40:
		if _, err := hex.DecodeString(value); err != nil {
			return "", false
		}
		return value, true
	case 32:
		raw, err := base32.StdEncoding.DecodeString(strings.ToUpper(value))
		if err != nil || len(raw) != 20 {
			return "", false
		}
		return hex.EncodeToString(raw), true
	default:
		return "", false
	}
}
