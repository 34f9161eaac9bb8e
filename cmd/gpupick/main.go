// Command gpupick loads a point series onto a GPU surface in streamed
// batches and answers nearest-point picks against it.
//
// Usage:
//
//	gpupick [flags]
//
// Every flag has a GPUPICK_* environment variable counterpart, and a .env
// file in the working directory is read first. Run with -h for the list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/gpupick"
	"github.com/gogpu/gpupick/backend"
	_ "github.com/gogpu/gpupick/backend/software"
	_ "github.com/gogpu/gpupick/backend/wgpu"
	"github.com/gogpu/gpupick/gpucore"
	"github.com/gogpu/gpupick/nearest"
	"github.com/gogpu/gpupick/series"
)

// ErrVerify is returned when a pick disagrees with the CPU scan.
var ErrVerify = errors.New("pick disagrees with CPU scan")

func main() {
	cfg, err := LoadConfig(".env", os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "gpupick:", err)
		os.Exit(2)
	}
	if err := ValidateConfig(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "gpupick:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, &cfg, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "gpupick:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, out io.Writer) error {
	level, _ := gpupick.ParseLevel(cfg.LogLevel)
	log := gpupick.NewTextLogger(os.Stderr, level)
	gpupick.SetLogger(log)
	p := message.NewPrinter(language.MustParse(cfg.Lang))

	if cfg.Generate != "" {
		if err := writeDataset(cfg.Generate, cfg); err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		p.Fprintf(out, "wrote %d points to %s\n", cfg.Points, cfg.Generate)
		return nil
	}

	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr, log)
	}

	dev, name, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer destroyDevice(dev)
	log.Info("device ready", "backend", name, "width", cfg.Width, "height", cfg.Height)

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	reducer, err := nearest.New(opts)
	if err != nil {
		return err
	}
	s := series.New(cfg.Capacity*4, reducer)
	defer s.Destroy(dev)
	s.SetColor(gpucore.Color{R: 0.1, G: 0.3, B: 0.8, A: 1})
	s.SetBackground(&gpucore.Color{R: 1, G: 1, B: 1, A: 1})

	pts, err := load(ctx, cfg, dev, s, p, out)
	if err != nil {
		return err
	}
	if s.Count() == 0 {
		p.Fprintf(out, "no points loaded\n")
		return nil
	}

	if err := pick(ctx, cfg, dev, s, pts, p, out); err != nil {
		return err
	}
	if cfg.Visualize {
		d := s.Domain()
		center := mgl32.Vec2{(d.XMin + d.XMax) / 2, (d.YMin + d.YMax) / 2}
		if err := s.Reducer().Visualize(dev, s.Count(), center); err != nil {
			return fmt.Errorf("visualize: %w", err)
		}
	}
	if cfg.PNG != "" {
		if err := writePNG(dev, cfg.PNG, cfg.PNGScale); err != nil {
			return fmt.Errorf("png: %w", err)
		}
		p.Fprintf(out, "wrote %s\n", cfg.PNG)
	}
	return nil
}

func openDevice(cfg *Config) (gpucore.Device, string, error) {
	bc := backend.Config{SurfaceWidth: cfg.Width, SurfaceHeight: cfg.Height, PixelRatio: cfg.PixelRatio}
	if cfg.Backend == "" {
		return backend.Default(bc)
	}
	dev, err := backend.Open(cfg.Backend, bc)
	return dev, cfg.Backend, err
}

func destroyDevice(dev gpucore.Device) {
	if d, ok := dev.(interface{ Destroy() }); ok {
		d.Destroy()
	}
}

func serveMetrics(addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	log.Info("serving metrics", "addr", addr)
}

// load streams every batch into s, refitting the domain and redrawing the
// surface after each one.
func load(ctx context.Context, cfg *Config, dev gpucore.Device, s *series.Series, p *message.Printer, out io.Writer) (*pointSet, error) {
	src, err := openSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", describe(cfg), err)
	}
	defer src.Close()

	pts := &pointSet{}
	var xChunks, yChunks, idChunks [][]byte
	for src.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := src.Batch()
		if pts.count()+b.Rows > cfg.Capacity {
			gpupick.Logger().Warn("capacity reached, dropping remaining batches", "capacity", cfg.Capacity)
			break
		}
		if b.Index == nil {
			if err := s.Append(b.X, b.Y); err != nil {
				return nil, err
			}
		} else {
			xChunks, yChunks, idChunks = append(xChunks, b.X), append(yChunks, b.Y), append(idChunks, b.Index)
			s.SetData(xChunks, yChunks, idChunks)
		}
		pts.add(b)
		if err := s.SetDomain(pts.paddedDomain()); err != nil {
			return nil, err
		}
		if err := s.Draw(dev); err != nil {
			return nil, fmt.Errorf("draw: %w", err)
		}
		p.Fprintf(out, "%d points loaded\n", s.Count())
	}
	if err := src.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", describe(cfg), err)
	}
	return pts, nil
}

// pick runs cfg.Picks queries at random pointer positions.
func pick(ctx context.Context, cfg *Config, dev gpucore.Device, s *series.Series, pts *pointSet, p *message.Printer, out io.Writer) error {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	w, h := dev.SurfaceSize()
	ratio := dev.PixelRatio()
	cutoff := s.Reducer().Cutoff()
	var mismatches int
	for i := 0; i < cfg.Picks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		at := s.PointerToDomain(dev, rng.Float64()*float64(w)/ratio, rng.Float64()*float64(h)/ratio)
		start := time.Now()
		res, ok, err := s.Pick(dev, at, cfg.Threshold)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)
		switch {
		case ok:
			p.Fprintf(out, "pick (%.2f, %.2f): point %d at %.3f (%v)\n", at.X(), at.Y(), res.Index, res.Distance, elapsed)
		case res.Hit:
			p.Fprintf(out, "pick (%.2f, %.2f): nearest point %d at %.3f is beyond %.2f (%v)\n", at.X(), at.Y(), res.Index, res.Distance, cfg.Threshold, elapsed)
		default:
			p.Fprintf(out, "pick (%.2f, %.2f): nothing within %.2f (%v)\n", at.X(), at.Y(), cutoff, elapsed)
		}
		if cfg.Verify && !pts.agrees(res, at, cutoff) {
			mismatches++
		}
	}
	if mismatches > 0 {
		return fmt.Errorf("%w: %d of %d picks", ErrVerify, mismatches, cfg.Picks)
	}
	if cfg.Verify {
		p.Fprintf(out, "%d picks verified\n", cfg.Picks)
	}
	return nil
}

// agrees reports whether res matches an exact scan up to two distance
// quanta. Ties and points right at the cutoff fall inside that margin.
func (p *pointSet) agrees(res nearest.Result, at mgl32.Vec2, cutoff float32) bool {
	want := nearest.BruteForce(p.xs, p.ys, at, cutoff)
	margin := 2 * float64(cutoff) / 255
	if want.Hit && res.Hit && p.ids[want.Index] == res.Index {
		return true
	}
	if math.Abs(want.Distance-res.Distance) <= margin {
		return true
	}
	gpupick.Logger().Warn("pick mismatch",
		"x", at.X(), "y", at.Y(),
		"got_index", res.Index, "got_distance", res.Distance, "got_hit", res.Hit,
		"want_index", p.ids[want.Index], "want_distance", want.Distance, "want_hit", want.Hit)
	return false
}

func (p *pointSet) count() int { return len(p.xs) }

// writePNG saves the default surface, scaled up by an integer factor.
func writePNG(dev gpucore.Device, path string, scale int) error {
	w, h := dev.SurfaceSize()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := dev.ReadPixels(0, 0, w, h, img.Pix); err != nil {
		return err
	}
	var dst image.Image = img
	if scale > 1 {
		big := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
		xdraw.NearestNeighbor.Scale(big, big.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		dst = big
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, dst); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
