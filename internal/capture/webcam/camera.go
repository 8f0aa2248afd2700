// Package webcam reads frames from a local camera and shows annotated
// previews with OpenCV.
package webcam

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"sync"

	"github.com/RudraShekhare/face-attendance-system/internal/service"
	"gocv.io/x/gocv"
)

// ErrNoFrame is returned when the device delivers an empty frame.
var ErrNoFrame = errors.New("camera returned no frame")

// Camera wraps an OpenCV video capture. The last frame read stays available
// through Frame until the next read.
type Camera struct {
	device string
	cap    *gocv.VideoCapture

	mu    sync.Mutex
	frame gocv.Mat
}

// Open opens device, either a numeric index ("0") or a file or stream URL.
func Open(device string) (*Camera, error) {
	var id interface{} = device
	if n, err := strconv.Atoi(device); err == nil {
		id = n
	}
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %s: %w", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %s is not available", device)
	}
	return &Camera{device: device, cap: vc, frame: gocv.NewMat()}, nil
}

// Read grabs a frame and returns it with its JPEG encoding.
func (c *Camera) Read() (gocv.Mat, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ok := c.cap.Read(&c.frame); !ok || c.frame.Empty() {
		return c.frame, nil, ErrNoFrame
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, c.frame)
	if err != nil {
		return c.frame, nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return c.frame, data, nil
}

// NextFrame implements service.FrameSource and capture.FrameSource.
func (c *Camera) NextFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, data, err := c.Read()
	return data, err
}

// Frame returns the last frame read.
func (c *Camera) Frame() gocv.Mat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Close releases the device and the frame buffer.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame.Close()
	return c.cap.Close()
}

var (
	known   = color.RGBA{G: 255, A: 255}
	unknown = color.RGBA{R: 255, A: 255}
)

// Preview is an OpenCV window that shows frames with face boxes and labels.
type Preview struct {
	window *gocv.Window
}

// NewPreview opens a window titled title.
func NewPreview(title string) *Preview {
	return &Preview{window: gocv.NewWindow(title)}
}

// Show draws outcomes on frame, displays it and reports whether the user
// pressed q.
func (p *Preview) Show(frame gocv.Mat, outcomes []service.CheckInOutcome) (quit bool) {
	if frame.Empty() {
		return false
	}
	for _, o := range outcomes {
		rect := o.Box.Rect()
		c := unknown
		if o.Known {
			c = known
		}
		gocv.Rectangle(&frame, rect, c, 2)
		gocv.PutText(&frame, o.Identity, image.Pt(rect.Min.X, max(0, rect.Min.Y-10)), gocv.FontHersheySimplex, 0.75, c, 2)
	}
	p.window.IMShow(frame)
	return p.window.WaitKey(1)&0xFF == 'q'
}

// ShowRaw displays frame without annotations.
func (p *Preview) ShowRaw(frame gocv.Mat) (quit bool) {
	return p.Show(frame, nil)
}

// Close destroys the window.
func (p *Preview) Close() error {
	return p.window.Close()
}
