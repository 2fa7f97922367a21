package parsers

import (
	"regexp"
	"strings"

	"github.com/xpnow/bugpanel/internal/normalize"
)

var (
	connectPattern    = regexp.MustCompile(`(.+?)\[(\d+)\] se conectează cu succes \| \(ip: (.+?)\)`)
	disconnectPattern = regexp.MustCompile(`(.+?)\[(\d+)\] s-a deconectat (.+)`)
)

type connectParser struct{}

func (connectParser) ID() string      { return "connect" }
func (connectParser) Version() string { return "v1" }

func (connectParser) Match(block normalize.Block) bool {
	return matchesAnyTitle(block, "Server Connect", "Server Disconnect")
}

func (connectParser) Parse(block normalize.Block) []EventData {
	var events []EventData
	for _, pl := range block.Payload {
		line := pl.Text
		if m := connectPattern.FindStringSubmatch(line); m != nil {
			events = append(events, EventData{
				EventType:   "CONNECT",
				SrcPlayerID: m[2],
				Metadata:    map[string]any{"ip": m[3]},
				Ref:         pl.Ref,
			})
			continue
		}
		if m := disconnectPattern.FindStringSubmatch(line); m != nil {
			eventType := "DISCONNECT"
			if strings.Contains(strings.ToLower(line), "banat") {
				eventType = "DISCONNECT_BANNED"
			}
			events = append(events, EventData{
				EventType:   eventType,
				SrcPlayerID: m[2],
				Metadata:    map[string]any{"reason_raw": m[3]},
				Ref:         pl.Ref,
			})
		}
	}
	return events
}
