package pipeline

// Stage names one step of a run.
type Stage string

const (
	StageCollect   Stage = "collect"
	StageStructure Stage = "structure"
	StageClassify  Stage = "classify"
	StageExcerpts  Stage = "excerpts"
	StageGenerate  Stage = "generate"
)

// Percent reached once each stage completes.
var stagePercent = map[Stage]int{
	StageCollect:   20,
	StageStructure: 40,
	StageClassify:  60,
	StageExcerpts:  70,
	StageGenerate:  100,
}

// Event reports that a stage finished.
type Event struct {
	Stage   Stage  `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// Observer receives progress events synchronously on the running goroutine.
type Observer func(Event)

// ChannelObserver forwards events to ch without blocking; events are dropped
// when ch is full.
func ChannelObserver(ch chan<- Event) Observer {
	return func(ev Event) {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (o Observer) emit(stage Stage, msg string) {
	if o == nil {
		return
	}
	o(Event{Stage: stage, Percent: stagePercent[stage], Message: msg})
}
