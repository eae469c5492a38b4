package pipeline

import (
	"fmt"

	"github.com/awygle/udptherbone/etherbone"
	"github.com/awygle/udptherbone/sim/modeling"
	"github.com/awygle/udptherbone/slip"
	"github.com/awygle/udptherbone/stream"
	"github.com/awygle/udptherbone/udp"
)

// Host is the requesting end of the link. Requests flow
//
//	Requests → Packetizer → Framer → SerialOut
//
// and responses flow
//
//	SerialIn → Unframer → Depacketizer → Responses
type Host struct {
	Codec etherbone.Codec

	Requests     *stream.Source
	Packetizer   *udp.Packetizer
	Framer       *slip.Framer
	Unframer     *slip.Unframer
	Depacketizer *udp.Depacketizer
	Responses    *stream.Sink

	SerialIn  *stream.Channel
	SerialOut *stream.Channel

	channels []modeling.Committer
}

// Components returns the host components.
func (h *Host) Components() []modeling.Component {
	return []modeling.Component{
		h.Requests,
		h.Packetizer,
		h.Framer,
		h.Unframer,
		h.Depacketizer,
		h.Responses,
	}
}

// Channels returns the channels the host owns.
func (h *Host) Channels() []modeling.Committer {
	return h.channels
}

// Register adds the components and channels to domain.
func (h *Host) Register(domain *modeling.Domain) {
	register(domain, h.Components(), h.channels)
}

// Submit encodes records into one request packet and queues it.
func (h *Host) Submit(records ...etherbone.Record) error {
	payload, err := h.Codec.EncodeRecords(records...)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	h.Requests.PushPacket(payload)

	return nil
}

// TakeResponses decodes and forgets the response packets received so far.
// Packets that do not decode are reported in the error and skipped.
func (h *Host) TakeResponses() ([]etherbone.Response, error) {
	var (
		responses []etherbone.Response
		firstErr  error
	)

	for _, packet := range h.Responses.TakePackets() {
		rsp, err := h.Codec.DecodeResponse(packet)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("decode response: %w", err)
			}

			continue
		}

		responses = append(responses, rsp)
	}

	return responses, firstErr
}
