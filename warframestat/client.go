// Package warframestat reads world state events from the warframestat API
// and turns them into content intents.
package warframestat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const DefaultTimeout = 30 * time.Second

//Platform is a game platform as known to the API (ID) and to readers (Name)
type Platform struct {
	ID   string
	Name string
}

var (
	PC     = Platform{ID: "pc", Name: "PC"}
	PS4    = Platform{ID: "ps4", Name: "PS4"}
	XB1    = Platform{ID: "xb1", Name: "Xbox One"}
	Switch = Platform{ID: "swi", Name: "Nintendo Switch"}

	//Platforms is queried by EventData, in this order
	Platforms = []Platform{PC, PS4, XB1, Switch}
)

//Event is a world state event
type Event struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Tooltip     string `json:"tooltip"`
	Node        string `json:"node"`
	VictimNode  string `json:"victimNode"`
	Expiry      string `json:"expiry"`
}

//PlatformEvent is an event found on a platform
type PlatformEvent struct {
	Platform string
	Event
}

type Client struct {
	baseURL   string
	http      *http.Client
	platforms []Platform
	log       *zap.SugaredLogger
}

//NewClient returns a client for the API at baseURL. A non-empty token is
//sent as a bearer token.
func NewClient(baseURL, token string, log *zap.SugaredLogger) *Client {
	hc := &http.Client{}
	if token != "" {
		hc = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	hc.Timeout = DefaultTimeout
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: hc, platforms: Platforms, log: log}
}

//Events returns the current events on p
func (c *Client) Events(ctx context.Context, p Platform) ([]Event, error) {
	u, err := url.JoinPath(c.baseURL, p.ID, "events")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get %s: unexpected status %d: %s", u, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode %s: %w", u, err)
	}
	return events, nil
}

//EventData returns, for every platform where it is running, the first event
//whose description contains name. A platform that cannot be queried fails
//the whole lookup.
func (c *Client) EventData(ctx context.Context, name string) ([]PlatformEvent, error) {
	found := make([]*PlatformEvent, len(c.platforms))
	eg, ectx := errgroup.WithContext(ctx)
	for i, p := range c.platforms {
		i, p := i, p
		eg.Go(func() error {
			events, err := c.Events(ectx, p)
			if err != nil {
				c.log.Errorw("cannot retrieve events", "platform", p.ID, "error", err)
				return fmt.Errorf("platform %s: %w", p.ID, err)
			}
			for _, e := range events {
				if strings.Contains(e.Description, name) {
					found[i] = &PlatformEvent{Platform: p.Name, Event: e}
					break
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []PlatformEvent
	for _, e := range found {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}
