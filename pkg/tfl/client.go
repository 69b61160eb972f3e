// Package tfl wraps the Transport for London unified API endpoints used by a
// session: nearby stop points, stop arrivals and journey planning.
package tfl

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"busstop/pkg/httpjson"
	"busstop/pkg/types"

	"github.com/clbanning/mxj/v2"
)

// BusStopTypes restricts stop searches to bus, coach and tram stops.
const BusStopTypes = "NaptanPublicBusCoachTram"

// Client builds TfL URLs and decodes their payloads.
type Client struct {
	getter  httpjson.Getter
	baseURL string
	appKey  string
}

// NewClient creates a TfL client. appKey may be empty; TfL serves anonymous
// requests at a lower rate limit.
func NewClient(getter httpjson.Getter, baseURL, appKey string) *Client {
	return &Client{
		getter:  getter,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		appKey:  appKey,
	}
}

// NearbyStops lists stop points within radius meters of coords, in provider order.
func (c *Client) NearbyStops(ctx context.Context, coords types.Coordinates, radius int) ([]StopPoint, error) {
	params := url.Values{
		"lat":       {formatCoord(coords.Latitude)},
		"lon":       {formatCoord(coords.Longitude)},
		"stopTypes": {BusStopTypes},
		"radius":    {strconv.Itoa(radius)},
	}

	var resp stopPointsResponse
	if err := c.get(ctx, "/StopPoint/", params, &resp); err != nil {
		return nil, fmt.Errorf("nearby stops: %w", err)
	}
	return resp.StopPoints, nil
}

// Arrivals lists the live arrival predictions at a stop, in provider order.
func (c *Client) Arrivals(ctx context.Context, stopID string) ([]ArrivalPrediction, error) {
	var resp arrivalsResponse
	path := fmt.Sprintf("/StopPoint/%s/Arrivals", url.PathEscape(stopID))
	if err := c.get(ctx, path, url.Values{}, &resp); err != nil {
		return nil, fmt.Errorf("arrivals for stop %s: %w", stopID, err)
	}
	return resp.Items, nil
}

// Journey plans a route from coords to a stop.
func (c *Client) Journey(ctx context.Context, from types.Coordinates, toStopID string) (*JourneyResponse, error) {
	path := fmt.Sprintf("/Journey/JourneyResults/%s,%s/to/%s",
		formatCoord(from.Latitude), formatCoord(from.Longitude), url.PathEscape(toStopID))

	var resp JourneyResponse
	if err := c.get(ctx, path, url.Values{}, &resp); err != nil {
		return nil, fmt.Errorf("journey to stop %s: %w", toStopID, err)
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dst interface{}) error {
	if c.appKey != "" {
		params.Set("app_key", c.appKey)
	}
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	m, err := c.getter.GetJSON(ctx, u)
	if err != nil {
		return err
	}
	return decode(m, dst)
}

func decode(m mxj.Map, dst interface{}) error {
	if err := m.Struct(dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
