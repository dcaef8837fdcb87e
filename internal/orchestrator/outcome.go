package orchestrator

// Outcome is the terminal state of one message's trip through the pipeline.
type Outcome int

const (
	// OutcomeFiltered means the message was ignored: bot-authored, a
	// command, denylisted, or sent outside a guild.
	OutcomeFiltered Outcome = iota

	// OutcomeUnbound means the guild has no bound channel, or the message
	// arrived in a channel other than the bound one.
	OutcomeUnbound

	// OutcomeNoProfile means the author has not registered a voice.
	OutcomeNoProfile

	// OutcomeNothingToSay means sanitization left no speakable text.
	OutcomeNothingToSay

	// OutcomePlaying is the success state: audio was handed to the voice
	// session.
	OutcomePlaying

	// OutcomeSynthesisFailed means the synthesis gateway errored.
	OutcomeSynthesisFailed

	// OutcomeNoSession means the bot is not connected to voice in the
	// guild.
	OutcomeNoSession

	// OutcomePlaybackFailed means the voice transport rejected the audio.
	OutcomePlaybackFailed

	// OutcomeReplaced means playback started but a later message took over
	// the session before the clip finished. Normal under bursty chat; the
	// cut-off clip is not counted as played.
	OutcomeReplaced
)

var outcomeNames = [...]string{
	OutcomeFiltered:        "filtered",
	OutcomeUnbound:         "unbound",
	OutcomeNoProfile:       "no_profile",
	OutcomeNothingToSay:    "nothing_to_say",
	OutcomePlaying:         "playing",
	OutcomeSynthesisFailed: "synthesis_failed",
	OutcomeNoSession:       "no_session",
	OutcomePlaybackFailed:  "playback_failed",
	OutcomeReplaced:        "replaced",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Silent reports whether the outcome produces no user-facing message. The
// quiet terminals avoid spamming channels with configuration noise; failures
// after the pipeline has committed to speaking are reported once.
func (o Outcome) Silent() bool {
	switch o {
	case OutcomeSynthesisFailed, OutcomeNoSession, OutcomePlaybackFailed:
		return false
	}
	return true
}
