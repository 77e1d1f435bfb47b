package paula

// Clock constants
// Reference: http://amigadev.elowar.com/read/ADCD_2.1/Hardware_Manual_guide/node00E3.html
const (
	// NumVoices is the number of DMA audio channels.
	NumVoices = 4

	// PALSystemClock is the PAL master clock divided down to the colour clock.
	PALSystemClock = 7093790
	// NTSCSystemClock is the NTSC equivalent.
	NTSCSystemClock = 7159090

	// PALPaulaClock is the rate at which Paula counts down periods.
	PALPaulaClock = PALSystemClock / 2
	// NTSCPaulaClock is the NTSC equivalent.
	NTSCPaulaClock = NTSCSystemClock / 2

	// PALCIAClock drives the CIA timers the players use for tempo.
	PALCIAClock = PALPaulaClock / 5
	// NTSCCIAClock is the NTSC equivalent.
	NTSCCIAClock = NTSCPaulaClock / 5
)

// Mixing constants
const (
	// maxVolume is the 6-bit hardware gain ceiling (unity).
	maxVolume = 0x40

	// minLoopLength is the shortest repeat segment treated as a real loop.
	// One and two sample loops are the trackers' "stop" marker.
	minLoopLength = 2

	// panLeft and panRight are the hardwired routings of the voice pairs.
	panLeft  = 0
	panRight = 255
)

// defaultPanning returns the hardware stereo routing for a voice:
// 0 and 3 on the left, 1 and 2 on the right.
func defaultPanning(voice int) uint8 {
	if voice == 0 || voice == 3 {
		return panLeft
	}
	return panRight
}
