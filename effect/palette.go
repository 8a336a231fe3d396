package effect

import (
	"umbra/game"
	"umbra/rig"
)

// Palette は光源ごとの色です。
type Palette struct {
	Illuminate  rig.RGB
	Spark       rig.RGB
	Bridge      rig.RGB
	Event       rig.RGB
	Aidron      rig.RGB
	Exit        rig.RGB
	MemorySpark rig.RGB
	Corridor    rig.RGB
	Safety      rig.RGB
}

func DefaultPalette() Palette {
	return Palette{
		Illuminate:  rig.RGB{255, 214, 150},
		Spark:       rig.RGB{255, 255, 255},
		Bridge:      rig.RGB{120, 200, 255},
		Event:       rig.RGB{255, 90, 40},
		Aidron:      rig.RGB{80, 255, 120},
		Exit:        rig.RGB{255, 255, 80},
		MemorySpark: rig.RGB{190, 120, 255},
		Corridor:    rig.RGB{60, 160, 255},
		Safety:      rig.RGB{40, 40, 40},
	}
}

func (p Palette) For(src game.LightSource) rig.RGB {
	switch src {
	case game.SourceIlluminate:
		return p.Illuminate
	case game.SourceSpark:
		return p.Spark
	case game.SourceBridge:
		return p.Bridge
	case game.SourceEvent:
		return p.Event
	case game.SourceAidron:
		return p.Aidron
	case game.SourceExit:
		return p.Exit
	case game.SourceMemorySpark:
		return p.MemorySpark
	case game.SourceCorridor:
		return p.Corridor
	default:
		return rig.RGB{}
	}
}
