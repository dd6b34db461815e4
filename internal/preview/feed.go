// Package preview mirrors the frames sent to a matrix onto websocket
// clients, so a browser can show what the strand should look like.
package preview

import (
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
)

// DefaultThrottle keeps clients at about 20 frames per second.
const DefaultThrottle = 50 * time.Millisecond

// Frame is the JSON message sent per preview frame. RGB holds N pixels in
// wiring order, three bytes each.
type Frame struct {
	N   int    `json:"n"`
	RGB string `json:"rgb"`
}

// Feed is a display.Drawer of n pixels that broadcasts what is drawn on it.
type Feed struct {
	mu       sync.Mutex
	n        int
	throttle time.Duration
	lastEmit time.Time
	clients  map[*websocket.Conn]bool
	log      zerolog.Logger
	now      func() time.Time
}

func New(n int, log zerolog.Logger) *Feed {
	return &Feed{
		n:        n,
		throttle: DefaultThrottle,
		clients:  map[*websocket.Conn]bool{},
		log:      log,
		now:      time.Now,
	}
}

// SetThrottle sets the minimum gap between broadcasts; 0 sends every frame.
func (f *Feed) SetThrottle(d time.Duration) {
	f.mu.Lock()
	f.throttle = d
	f.mu.Unlock()
}

func (f *Feed) String() string { return "preview" }

func (f *Feed) ColorModel() color.Model { return color.NRGBAModel }

func (f *Feed) Bounds() image.Rectangle { return image.Rect(0, 0, f.n, 1) }

// Halt sends an all black frame to clients.
func (f *Feed) Halt() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast(make([]byte, f.n*3))
	return nil
}

// Draw broadcasts the first row of src, unless the last broadcast was less
// than the throttle ago.
func (f *Feed) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	if f.lastEmit.Add(f.throttle).After(now) {
		return nil
	}
	f.lastEmit = now

	row := image.NewNRGBA(f.Bounds())
	draw.Draw(row, r.Intersect(row.Bounds()), src, sp, draw.Src)
	rgb := make([]byte, f.n*3)
	for i := 0; i < f.n; i++ {
		c := row.NRGBAAt(i, 0)
		rgb[i*3+0] = c.R
		rgb[i*3+1] = c.G
		rgb[i*3+2] = c.B
	}
	f.broadcast(rgb)
	return nil
}

// broadcast must be called with f.mu held.
func (f *Feed) broadcast(rgb []byte) {
	msg := Frame{N: f.n, RGB: base64.StdEncoding.EncodeToString(rgb)}
	for c := range f.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteJSON(msg); err != nil {
			f.log.Debug().Err(err).Msg("preview client dropped")
			delete(f.clients, c)
			c.Close()
		}
	}
}

// Clients is the number of connected websocket clients.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// ServeHTTP upgrades the request and adds the client to the feed.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.clients[conn] = true
	f.mu.Unlock()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		f.mu.Lock()
		if f.clients[conn] {
			delete(f.clients, conn)
			conn.Close()
		}
		f.mu.Unlock()
	}()
}

var _ display.Drawer = (*Feed)(nil)
