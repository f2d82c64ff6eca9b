package domain

// ManifestBuild is one build of a game version as listed by a build
// manifest.
type ManifestBuild struct {
	BuildID  int    `json:"build"`
	URL      string `json:"url"`
	Checksum string `json:"checksum"`
	FileName string `json:"file_name,omitempty"`
}

// Descriptor binds a manifest build to its server type and game version.
func (b ManifestBuild) Descriptor(serverType ServerType, gameVersion string) BuildDescriptor {
	return BuildDescriptor{
		ServerType:       serverType,
		GameVersion:      gameVersion,
		BuildID:          b.BuildID,
		DownloadURL:      b.URL,
		ExpectedChecksum: b.Checksum,
		FileName:         b.FileName,
	}
}
