//go:build !386
// +build !386

package gpio

// struct gpioevent_data
type gpioeventData struct {
	timestamp uint64
	id        uint32
	_         uint32 // 64-bit alignment padding
}
