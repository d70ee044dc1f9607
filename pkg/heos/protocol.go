package heos

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultPort is the TCP port HEOS devices listen on for CLI commands.
const DefaultPort = 1255

// Commands used by the queue manager.
const (
	CmdGetPlayers      = "player/get_players"
	CmdClearQueue      = "player/clear_queue"
	CmdGetQueue        = "player/get_queue"
	CmdGetNowPlaying   = "player/get_now_playing_media"
	CmdRemoveFromQueue = "player/remove_from_queue"
)

// Result values carried in the response header.
const (
	ResultSuccess = "success"
	ResultFail    = "fail"
)

// HeadQueueID is the qid a device reports for the playing entry once the
// queue has been compacted and renumbered from the head.
const HeadQueueID = 1

// Header is the "heos" object common to every response.
type Header struct {
	Command string `json:"command"`
	Result  string `json:"result"`
	Message string `json:"message"`
}

// Response is one JSON line received from a device.
type Response struct {
	Heos    Header          `json:"heos"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Succeeded reports whether the device flagged the command as successful.
func (r Response) Succeeded() bool {
	return r.Heos.Result == ResultSuccess
}

// IsEvent reports whether the line is an unsolicited change event rather
// than a command reply.
func (r Response) IsEvent() bool {
	return strings.HasPrefix(r.Heos.Command, "event/")
}

// InProgress reports an interim acknowledgement; the real reply follows.
func (r Response) InProgress() bool {
	return strings.Contains(r.Heos.Message, "command under process")
}

// MessageValues parses the k=v&k=v header message into a map. Keys without
// a value map to the empty string.
func (r Response) MessageValues() map[string]string {
	values := map[string]string{}
	for _, pair := range strings.Split(r.Heos.Message, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		values[key] = value
	}
	return values
}

// BuildCommand renders a command line for the wire. Arguments are emitted in
// sorted key order and unescaped: HEOS devices expect raw values (qid lists
// keep their commas).
func BuildCommand(command string, args map[string]string) string {
	var b strings.Builder
	b.WriteString("heos://")
	b.WriteString(command)
	if len(args) > 0 {
		keys := make([]string, 0, len(args))
		for key := range args {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for i, key := range keys {
			if i == 0 {
				b.WriteString("?")
			} else {
				b.WriteString("&")
			}
			b.WriteString(key)
			b.WriteString("=")
			b.WriteString(args[key])
		}
	}
	return b.String()
}

// ParseCommand splits a wire line into its command and arguments. The
// inverse of BuildCommand.
func ParseCommand(line string) (string, map[string]string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "heos://")
	if !ok {
		return "", nil, fmt.Errorf("malformed command line %q", line)
	}
	command, query, _ := strings.Cut(rest, "?")
	if command == "" {
		return "", nil, fmt.Errorf("malformed command line %q", line)
	}
	args := map[string]string{}
	if query != "" {
		for _, pair := range strings.Split(query, "&") {
			key, value, _ := strings.Cut(pair, "=")
			args[key] = value
		}
	}
	return command, args, nil
}

// PIDArgs builds the argument map every player-scoped command starts from.
func PIDArgs(pid int) map[string]string {
	return map[string]string{"pid": strconv.Itoa(pid)}
}

// JoinQIDs renders a batched qid list for player/remove_from_queue.
func JoinQIDs(qids []int) string {
	parts := make([]string, 0, len(qids))
	for _, qid := range qids {
		parts = append(parts, strconv.Itoa(qid))
	}
	return strings.Join(parts, ",")
}

// ErrorResponse builds a fail response for a command, used by simulated
// devices and tests.
func ErrorResponse(command string, message string) Response {
	return Response{Heos: Header{Command: command, Result: ResultFail, Message: message}}
}

// SuccessResponse builds a success response with an optional payload.
func SuccessResponse(command string, message string, payload any) (Response, error) {
	resp := Response{Heos: Header{Command: command, Result: ResultSuccess, Message: message}}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Response{}, fmt.Errorf("marshal payload: %w", err)
		}
		resp.Payload = raw
	}
	return resp, nil
}
