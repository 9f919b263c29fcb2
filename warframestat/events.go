package warframestat

import (
	"context"

	"github.com/justinsantoro/warframesync/content"
	"github.com/justinsantoro/warframesync/workspace"
)

const (
	BalorFomorianEvent    = "Balor Fomorian"
	ThermiaFracturesEvent = "Thermia Fractures"
)

//Source looks up a named event across platforms
type Source interface {
	EventData(ctx context.Context, name string) ([]PlatformEvent, error)
}

type EventPlace struct {
	Platform string `yaml:"platform"`
	Place    string `yaml:"place"`
}

type Availability struct {
	Platform string `yaml:"platform"`
}

//BalorFomorian records on which node each platform is being attacked
type BalorFomorian struct {
	Source Source
}

func (BalorFomorian) Name() string { return BalorFomorianEvent }

func (b BalorFomorian) Produce(ctx context.Context, _ workspace.ExecutionContext) ([]content.Intent, error) {
	events, err := b.Source.EventData(ctx, BalorFomorianEvent)
	if err != nil {
		return nil, err
	}
	places := make([]EventPlace, 0, len(events))
	for _, e := range events {
		places = append(places, EventPlace{Platform: e.Platform, Place: e.VictimNode})
	}
	return []content.Intent{{
		Target:  content.Target{Category: "content", Subfolder: "content", Filename: "balor-fomorian-event.md"},
		Payload: map[string]any{"eventPlace": places},
	}}, nil
}

//ThermiaFractures records the platforms the event is running on
type ThermiaFractures struct {
	Source Source
}

func (ThermiaFractures) Name() string { return ThermiaFracturesEvent }

func (t ThermiaFractures) Produce(ctx context.Context, _ workspace.ExecutionContext) ([]content.Intent, error) {
	events, err := t.Source.EventData(ctx, ThermiaFracturesEvent)
	if err != nil {
		return nil, err
	}
	available := make([]Availability, 0, len(events))
	for _, e := range events {
		available = append(available, Availability{Platform: e.Platform})
	}
	return []content.Intent{{
		Target:  content.Target{Category: "content", Subfolder: "content", Filename: "thermia-fractures-event-guide.md"},
		Payload: map[string]any{"availableOn": available},
	}}, nil
}

//Producers returns every producer backed by src
func Producers(src Source) []content.Producer {
	return []content.Producer{BalorFomorian{Source: src}, ThermiaFractures{Source: src}}
}
