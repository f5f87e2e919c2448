//go:build !linux

package source

import (
	"io"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

func openSerial(path string, baud int, rtscts bool, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:              path,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: uint(deciseconds(readTimeout)) * 100,
		RTSCTSFlowControl:     rtscts,
	})
}
