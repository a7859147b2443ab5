// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/gy801/internal/config"
	"github.com/relabs-tech/gy801/internal/orientation"
	"github.com/relabs-tech/gy801/internal/sensors"
)

const (
	displayWidth  = 128
	displayHeight = 64

	// ssd1306.NewI2C always talks to this address.
	ssd1306DefaultAddr = 0x3C
)

// addrBus redirects transactions for one device address to another, so
// the OLED can sit at 0x3D.
type addrBus struct {
	i2c.Bus
	from, to uint16
}

func (b *addrBus) Tx(addr uint16, w, r []byte) error {
	if addr == b.from {
		addr = b.to
	}
	return b.Bus.Tx(addr, w, r)
}

func remapAddr(bus i2c.Bus, from, to uint16) i2c.Bus {
	if from == to {
		return bus
	}
	return &addrBus{Bus: bus, from: from, to: to}
}

// RunDisplay shows the current pose on an SSD1306 OLED sharing the I2C
// bus with the GY-801, refreshed every display.update_interval_ms.
func RunDisplay(ctx context.Context, cfg *config.Config) error {
	bus, closer, err := sensors.OpenI2C(cfg.I2CBus)
	if err != nil {
		return err
	}
	defer closer.Close()

	dev, err := ssd1306.NewI2C(remapAddr(bus.Bus(), ssd1306DefaultAddr, cfg.Display.I2CAddr), &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Infof("display: initialized at 0x%02X", cfg.Display.I2CAddr)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Warnf("display: error showing splash: %v", err)
	}

	board, err := sensors.NewGY801(bus, sensors.CalibrationFromConfig(cfg))
	if err != nil {
		return err
	}
	src := newBoardSource(board, cfg)

	interval := time.Duration(cfg.Display.UpdateIntervalMS) * time.Millisecond
	log.Info("display: starting update loop")
	err = runLoop(ctx, src, interval, func(f Frame) {
		if err := dev.Draw(dev.Bounds(), renderPose(f.Pose), image.Point{}); err != nil {
			log.Warnf("display: error updating: %v", err)
		}
	})
	if herr := dev.Halt(); herr != nil {
		log.Warnf("display: halt: %v", herr)
	}
	return err
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, x, y int, s string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

func angleText(a orientation.Angle) string {
	if !a.Valid {
		return "  ---"
	}
	return fmt.Sprintf("%6.1f", a.Degrees)
}

// renderPose draws pitch, roll and both headings, one per line.
func renderPose(p orientation.Pose) *image1bit.VerticalLSB {
	img, d := newCanvas()
	drawLine(d, 0, 13, "P: "+angleText(p.Pitch))
	drawLine(d, 0, 26, "R: "+angleText(p.Roll))
	drawLine(d, 0, 39, fmt.Sprintf("H: %6.1f", p.Heading))
	drawLine(d, 0, 52, "T: "+angleText(p.TiltHeading))
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, d := newCanvas()
	drawLine(d, 10, 26, "GY-801 IMU")
	drawLine(d, 5, 43, "Tilt compass")
	return img
}
