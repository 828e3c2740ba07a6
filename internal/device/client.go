// Package device implements the JSON/HTTP client for the Cronus device
// API. Every call that fails for any reason (transport error, non-2xx
// status, malformed body) returns nil: callers treat "no response" as a
// single uniform condition, never as distinct error types.
package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	cronus "github.com/E3dvis/cronustraining"
)

const defaultTimeout = 3 * time.Second

// StatusResponse answers GET /Status.
type StatusResponse struct {
	OK bool `json:"OK"`
}

// ModeResponse answers GET /Mode.
type ModeResponse struct {
	OK   bool   `json:"OK"`
	Mode string `json:"Mode"`
}

// ChannelStatus answers GET /Ch{n}/Status.
type ChannelStatus struct {
	OK                        bool   `json:"OK"`
	IsWavelengthSettingActive bool   `json:"IsWavelengthSettingActive"`
	WavelengthSettingState    string `json:"WavelengthSettingState"`
}

// WavelengthRange answers GET /Ch{n}/WavelengthRange.
type WavelengthRange struct {
	OK      bool    `json:"OK"`
	IsEmpty bool    `json:"IsEmpty"`
	Min     float64 `json:"Min"`
	Max     float64 `json:"Max"`
}

// SetResult answers PUT /Ch{n}/Wavelength.
type SetResult struct {
	OK bool `json:"OK"`
}

// PowerReading answers GET /Ch{n}/Power.
type PowerReading struct {
	OK    bool    `json:"OK"`
	Power float64 `json:"Power"`
}

// OffResult answers PUT /Off.
type OffResult struct {
	OK bool `json:"OK"`
}

type setWavelengthBody struct {
	OK         bool    `json:"OK"`
	Wavelength float64 `json:"Wavelength"`
}

// Client talks to one Cronus device.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the device at baseURL, e.g.
// "http://127.0.0.1:35100/v0/Cronus". A non-positive timeout falls back
// to the default.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Status reports overall device status, or nil on no response.
func (c *Client) Status() *StatusResponse {
	var out StatusResponse
	if !c.getJSON("/Status", &out) {
		return nil
	}
	return &out
}

// Mode reports the device operating mode, or nil on no response.
func (c *Client) Mode() *ModeResponse {
	var out ModeResponse
	if !c.getJSON("/Mode", &out) {
		return nil
	}
	return &out
}

// ChannelStatus reports the tuning state of one channel, or nil.
func (c *Client) ChannelStatus(channel int) *ChannelStatus {
	var out ChannelStatus
	if !c.getJSON(fmt.Sprintf("/Ch%d/Status", channel), &out) {
		return nil
	}
	return &out
}

// Reachable reports whether the channel answers its status endpoint with
// OK. This is the synchronous check the run engine consults before each
// cycle.
func (c *Client) Reachable(channel int) bool {
	st := c.ChannelStatus(channel)
	return st != nil && st.OK
}

// Range fetches the hardware wavelength interval of a channel. Returns
// nil when the device does not answer, answers not-OK, or reports an
// empty range.
func (c *Client) Range(channel int) *cronus.DeviceRange {
	var out WavelengthRange
	if !c.getJSON(fmt.Sprintf("/Ch%d/WavelengthRange", channel), &out) {
		return nil
	}
	if !out.OK || out.IsEmpty {
		return nil
	}
	return &cronus.DeviceRange{Min: out.Min, Max: out.Max}
}

// SetWavelength commands the channel to wl nm, or nil on no response.
func (c *Client) SetWavelength(channel int, wl float64) *SetResult {
	var out SetResult
	body := setWavelengthBody{OK: true, Wavelength: wl}
	if !c.putJSON(fmt.Sprintf("/Ch%d/Wavelength", channel), body, &out) {
		return nil
	}
	return &out
}

// Power reads the instantaneous output power of a channel, or nil.
func (c *Client) Power(channel int) *PowerReading {
	var out PowerReading
	if !c.getJSON(fmt.Sprintf("/Ch%d/Power", channel), &out) {
		return nil
	}
	return &out
}

// Off requests a device shutdown, or nil on no response.
func (c *Client) Off() *OffResult {
	var out OffResult
	if !c.putJSON("/Off", struct{}{}, &out) {
		return nil
	}
	return &out
}

func (c *Client) getJSON(path string, out any) bool {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return false
	}
	return decodeResponse(resp, out)
}

func (c *Client) putJSON(path string, body, out any) bool {
	payload, err := json.Marshal(body)
	if err != nil {
		return false
	}
	req, err := http.NewRequest(http.MethodPut, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) bool {
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}
	return json.NewDecoder(resp.Body).Decode(out) == nil
}
