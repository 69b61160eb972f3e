// Package postcodes talks to the postcodes.io lookup API.
package postcodes

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"busstop/pkg/httpjson"
)

// Response mirrors the parts of a postcodes.io lookup payload busstop reads.
// Error responses carry Status and Error and no Result.
type Response struct {
	Status int     `json:"status"`
	Error  string  `json:"error,omitempty"`
	Result *Result `json:"result,omitempty"`
}

type Result struct {
	Postcode  string  `json:"postcode"`
	Region    string  `json:"region"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Client looks postcodes up.
type Client struct {
	getter  httpjson.Getter
	baseURL string
}

func NewClient(getter httpjson.Getter, baseURL string) *Client {
	return &Client{
		getter:  getter,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Lookup fetches a postcode. An upstream error status that came with a JSON
// error payload is returned as a Response (Status >= 300) rather than an
// error, so callers can show the provider's own message. Only failures with
// nothing to classify are returned as errors.
func (c *Client) Lookup(ctx context.Context, postcode string) (*Response, error) {
	u := fmt.Sprintf("%s/postcodes/%s", c.baseURL, url.PathEscape(postcode))

	m, err := c.getter.GetJSON(ctx, u)
	if err != nil {
		var terr *httpjson.TransportError
		if errors.As(err, &terr) && terr.Body != nil {
			var resp Response
			if decodeErr := terr.Body.Struct(&resp); decodeErr == nil && resp.Status != 0 {
				return &resp, nil
			}
		}
		return nil, fmt.Errorf("postcode lookup: %w", err)
	}

	var resp Response
	if err := m.Struct(&resp); err != nil {
		return nil, fmt.Errorf("decode postcode lookup: %w", err)
	}
	return &resp, nil
}
