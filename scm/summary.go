package scm

// Summary describes a container's layout for tooling output.
type Summary struct {
	Target      string          `yaml:"target"`
	Size        int             `yaml:"size"`
	Sections    SectionOffsets  `yaml:"sections"`
	GlobalsSize uint32          `yaml:"globals-size"`
	MainSize    uint32          `yaml:"main-size"`
	Largest     uint32          `yaml:"largest-mission"`
	Models      []string        `yaml:"models,omitempty"`
	Missions    []MissionRecord `yaml:"missions,omitempty"`
}

// SectionOffsets lists the absolute section starts.
type SectionOffsets struct {
	Globals  uint32 `yaml:"globals"`
	Models   uint32 `yaml:"models"`
	Missions uint32 `yaml:"missions"`
	Code     uint32 `yaml:"code"`
}

// MissionRecord is one mission table entry.
type MissionRecord struct {
	Index  int    `yaml:"index"`
	Offset uint32 `yaml:"offset"`
}

// Summary returns the container layout.
func (f *File) Summary() Summary {
	s := Summary{
		Target: f.target.String(),
		Size:   len(f.data),
		Sections: SectionOffsets{
			Globals:  f.globalSectionOffset,
			Models:   f.modelSectionOffset,
			Missions: f.missionSectionOffset,
			Code:     f.codeSectionOffset,
		},
		GlobalsSize: f.GlobalsSize(),
		MainSize:    f.mainSize,
		Largest:     f.missionLargestSize,
		Models:      f.models,
	}
	for i, off := range f.missionOffsets {
		s.Missions = append(s.Missions, MissionRecord{Index: i, Offset: off})
	}
	return s
}
