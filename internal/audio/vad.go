package audio

// VADConfig holds configuration for energy-based voice activity detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Consecutive quiet frames before speech is considered over
	FrameSize       int     // Samples per frame
}

// DefaultVADConfig returns a configuration for 16kHz mono capture
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,  // 200ms of silence (10 frames * 20ms)
		FrameSize:       320, // 20ms at 16kHz
	}
}

// FrameSizeFor returns the samples in one frame of frameMs at sampleRate
func FrameSizeFor(sampleRate, frameMs int) int {
	return sampleRate * frameMs / 1000
}

// VADDetector tracks speech/silence over consecutive frames
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
	level          float64
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{config: config}
}

// ProcessFrame feeds one frame and returns (isSpeaking, speechStarted, speechEnded).
// speechEnded is only reported after SilenceFrames quiet frames in a row.
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	v.level = CalculateRMS(samples)
	frameHasSpeech := v.level > v.config.EnergyThreshold

	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silenceCounter = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
	} else {
		v.silenceCounter++
		if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// Reset resets the VAD detector state
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
	v.level = 0
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}

// Level returns the RMS energy of the last frame
func (v *VADDetector) Level() float64 {
	return v.level
}
