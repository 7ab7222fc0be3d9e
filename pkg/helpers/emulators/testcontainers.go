package emulators

// ImageContainer names an emulator image and the ports it listens on.
type ImageContainer struct {
	EmulatorImage    string
	EmulatorHTTPPort string
}

type GCImageContainer struct {
	ImageContainer
	ProjectID string
}
