package storyboard

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// varsCountMap gives the arity of a shorthand-eligible command's value tuple.
// P is handled separately since its "value" is a single flag character.
var varsCountMap = map[string]int{
	"F":  1,
	"S":  1,
	"R":  1,
	"MX": 1,
	"MY": 1,
	"M":  2,
	"V":  2,
	"C":  3,
}

var commandTypeByName = map[string]CommandType{
	"F":  CmdFade,
	"M":  CmdMove,
	"MX": CmdMoveX,
	"MY": CmdMoveY,
	"S":  CmdScale,
	"V":  CmdVectorScale,
	"R":  CmdRotate,
	"C":  CmdColor,
	"P":  CmdParameter,
}

// Parser turns `.osb`/`[Events]` text into a Storyboard. A Parser is
// stateful across lines (current object, current loop); each Parse call
// resets that state, so one Parser can parse several files in turn, but not
// concurrently.
type Parser struct {
	log *logrus.Entry

	sb           *Storyboard
	currentObj   *SBObject
	currentLoop  *LoopCommand
	inEvents     bool
	errorsSeen   int
}

// NewParser returns a Parser that logs recoverable problems through log, or
// through logrus's standard logger if log is nil.
func NewParser(log *logrus.Entry) *Parser {
	if log == nil {
		log = logrus.WithField("component", "storyboard.parser")
	}
	return &Parser{log: log}
}

// ParseFile opens path and parses its [Events] section.
func (p *Parser) ParseFile(path string) (*Storyboard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("storyboard: open %q: %w", path, err)
	}
	defer f.Close()
	return p.Parse(f)
}

// Parse reads r line by line, parsing only the [Events] section. Lines
// outside [Events], blank lines, and `//` comments are skipped, matching the
// original scripting language's loose syntax.
func (p *Parser) Parse(r io.Reader) (*Storyboard, error) {
	p.sb = &Storyboard{}
	p.currentObj = nil
	p.currentLoop = nil
	p.inEvents = false
	p.errorsSeen = 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			p.inEvents = line == "[Events]"
			continue
		}
		if p.inEvents {
			p.parseLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("storyboard: read: %w", err)
	}
	return p.sb, nil
}

func (p *Parser) parseLine(line string) {
	indent := 0
	for len(line) > 0 && (line[0] == '_' || line[0] == ' ') {
		indent++
		line = line[1:]
	}
	parts := strings.Split(line, ",")

	switch indent {
	case 0:
		p.parseObject(parts)
	case 1:
		p.parseCommandL1(parts)
	default:
		p.parseCommandL2(parts)
	}
}

func (p *Parser) parseObject(parts []string) {
	p.currentLoop = nil

	objType := strings.TrimSpace(parts[0])
	if objType != "Sprite" && objType != "Animation" {
		return
	}

	obj, err := p.buildObject(objType, parts)
	if err != nil {
		p.errorsSeen++
		p.log.WithError(err).WithField("fields", parts).Warn("skipping malformed storyboard object")
		p.currentObj = nil
		return
	}

	p.currentObj = obj
	p.sb.AddObject(obj)
}

func (p *Parser) buildObject(objType string, parts []string) (*SBObject, error) {
	if len(parts) < 6 {
		return nil, fmt.Errorf("expected at least 6 fields, got %d", len(parts))
	}
	layer, ok := ParseLayer(strings.TrimSpace(parts[1]))
	if !ok {
		return nil, fmt.Errorf("unknown layer %q", parts[1])
	}
	origin, ok := ParseOrigin(strings.TrimSpace(parts[2]))
	if !ok {
		return nil, fmt.Errorf("unknown origin %q", parts[2])
	}
	filepath := strings.Trim(strings.TrimSpace(parts[3]), `"`)
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[4]), 64)
	if err != nil {
		return nil, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[5]), 64)
	if err != nil {
		return nil, fmt.Errorf("y: %w", err)
	}

	obj := &SBObject{
		Layer:    layer,
		Origin:   origin,
		Filepath: filepath,
		Position: Vector2{x, y},
	}

	if objType == "Sprite" {
		obj.Kind = KindSprite
		return obj, nil
	}

	obj.Kind = KindAnimation
	if len(parts) < 8 {
		return nil, fmt.Errorf("Animation expects frame count and delay, got %d fields", len(parts))
	}
	frameCount, err := strconv.Atoi(strings.TrimSpace(parts[6]))
	if err != nil {
		return nil, fmt.Errorf("frame count: %w", err)
	}
	frameDelay, err := strconv.Atoi(strings.TrimSpace(parts[7]))
	if err != nil {
		return nil, fmt.Errorf("frame delay: %w", err)
	}
	obj.FrameCount = frameCount
	obj.FrameDelay = frameDelay
	obj.AnimLoop = LoopForever
	if len(parts) > 8 {
		if strings.TrimSpace(parts[8]) == "LoopOnce" {
			obj.AnimLoop = LoopOnce
		}
	}
	return obj, nil
}

func (p *Parser) parseCommandL1(parts []string) {
	if p.currentObj == nil {
		return
	}
	cmdType := strings.TrimSpace(parts[0])

	switch cmdType {
	case "L":
		loop, err := p.buildLoop(parts)
		if err != nil {
			p.errorsSeen++
			p.log.WithError(err).WithField("fields", parts).Warn("skipping malformed loop command")
			p.currentLoop = nil
			return
		}
		p.currentObj.Commands = append(p.currentObj.Commands, TopCommand{IsLoop: true, Loop: *loop})
		p.currentLoop = &p.currentObj.Commands[len(p.currentObj.Commands)-1].Loop
	case "T":
		// Trigger commands are parsed-then-ignored per spec Non-goals.
		p.currentLoop = nil
	default:
		p.currentLoop = nil
		cmds := p.parseBasicCommand(parts)
		for _, c := range cmds {
			p.currentObj.Commands = append(p.currentObj.Commands, TopCommand{Cmd: c})
		}
	}
}

func (p *Parser) parseCommandL2(parts []string) {
	if p.currentLoop == nil {
		return
	}
	cmdType := strings.TrimSpace(parts[0])
	if cmdType == "T" {
		return
	}
	cmds := p.parseBasicCommand(parts)
	p.currentLoop.Children = append(p.currentLoop.Children, cmds...)
}

func (p *Parser) buildLoop(parts []string) (*LoopCommand, error) {
	if len(parts) < 3 {
		return nil, fmt.Errorf("expected start time and loop count, got %d fields", len(parts))
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("start time: %w", err)
	}
	count, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, fmt.Errorf("loop count: %w", err)
	}
	return &LoopCommand{StartTime: start, LoopCount: count}, nil
}

// parseBasicCommand implements the shorthand-expansion algorithm: duplicate
// a single value-tuple into start+end if given only once, reject if the
// tuple count is under double arity, otherwise expand N tuples into N-1
// sequential commands with time-shifted boundaries.
func (p *Parser) parseBasicCommand(parts []string) []Command {
	if len(parts) < 3 {
		p.errorsSeen++
		p.log.WithField("fields", parts).Warn("skipping command with too few fields")
		return nil
	}
	eventName := strings.TrimSpace(parts[0])
	easing, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		p.errorsSeen++
		p.log.WithError(err).WithField("fields", parts).Warn("skipping command with bad easing")
		return nil
	}
	startTime, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		p.errorsSeen++
		p.log.WithError(err).WithField("fields", parts).Warn("skipping command with bad start time")
		return nil
	}

	endTime := startTime
	if len(parts) > 3 && strings.TrimSpace(parts[3]) != "" {
		endTime, err = strconv.Atoi(strings.TrimSpace(parts[3]))
		if err != nil {
			p.errorsSeen++
			p.log.WithError(err).WithField("fields", parts).Warn("skipping command with bad end time")
			return nil
		}
	}

	rawParams := parts[4:]

	if eventName == "P" {
		if len(rawParams) == 0 {
			return nil
		}
		flag := strings.TrimSpace(rawParams[0])
		if flag == "" {
			return nil
		}
		return []Command{{
			Type:      CmdParameter,
			Easing:    easing,
			StartTime: startTime,
			EndTime:   endTime,
			Flag:      ParamFlag(flag[0]),
		}}
	}

	cmdType, ok := commandTypeByName[eventName]
	if !ok {
		p.errorsSeen++
		p.log.WithField("type", eventName).Warn("skipping unknown command type")
		return nil
	}
	varsCount, ok := varsCountMap[eventName]
	if !ok {
		p.errorsSeen++
		p.log.WithField("type", eventName).Warn("skipping command type with no known arity")
		return nil
	}

	params := make([]float64, 0, len(rawParams))
	for _, raw := range rawParams {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			p.errorsSeen++
			p.log.WithError(err).WithField("fields", parts).Warn("skipping command with bad numeric parameter")
			return nil
		}
		params = append(params, v)
	}

	if len(params) == varsCount {
		params = append(params, params...)
	}
	if len(params) < varsCount*2 {
		return nil
	}

	stateCount := len(params) / varsCount
	commandsCount := stateCount - 1
	duration := endTime - startTime

	out := make([]Command, 0, commandsCount)
	for i := 0; i < commandsCount; i++ {
		currStart := startTime + i*duration
		currEnd := endTime + i*duration
		startIdx := i * varsCount
		endIdx := (i + 2) * varsCount

		var segment [6]float64
		copy(segment[:], params[startIdx:endIdx])

		out = append(out, Command{
			Type:      cmdType,
			Easing:    easing,
			StartTime: currStart,
			EndTime:   currEnd,
			Params:    segment,
		})
	}
	return out
}

// ErrorsSeen reports how many malformed lines were skipped during the most
// recent Parse/ParseFile call.
func (p *Parser) ErrorsSeen() int {
	return p.errorsSeen
}
