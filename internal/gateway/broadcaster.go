package gateway

import "strconv"

// appendEnvelope hand-crafts the envelope JSON. data must already be valid
// JSON; this avoids a json.Marshal per message on the hot path.
func appendEnvelope(buf []byte, channel, typ string, data []byte, seq int64, snapshot bool) []byte {
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","type":"`...)
	buf = append(buf, typ...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	if snapshot {
		buf = append(buf, `,"snapshot":true`...)
	}
	buf = append(buf, '}')
	return buf
}

// broadcast stamps the next seq on a message, records it for replay and
// fans it out to every connected client. Slow clients drop messages
// rather than stall the feed.
func (h *Hub) broadcast(channel, typ string, data []byte) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	buf := appendEnvelope(make([]byte, 0, len(data)+96), channel, typ, data, seq, false)
	h.replay.Push(seq, buf)

	dropped := 0
	for client := range h.clients {
		select {
		case client.send <- buf:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 && h.OnDrop != nil {
		h.OnDrop(dropped)
	}
}
