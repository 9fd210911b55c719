package relay

import "fmt"

// SinkName is the host binding the injected tap pushes audio through.
const SinkName = "__audioRelaySink"

// TapScript returns the script injected into the page before any platform
// code runs. It wraps getUserMedia so the first microphone acquisition is
// instrumented: the platform receives the original stream untouched, while
// a cloned branch runs through a silent processing graph that emits
// fixed-size S16LE chunks into the host sink. chunkSamples must be a power
// of two (ScriptProcessorNode constraint) and stays constant for the
// session so downstream framing is uniform.
func TapScript(chunkSamples int) string {
	return fmt.Sprintf(tapTemplate, chunkSamples, SinkName)
}

const tapTemplate = `(() => {
  const CHUNK_SAMPLES = %d;
  const SINK = %q;
  if (!navigator.mediaDevices || !navigator.mediaDevices.getUserMedia) {
    return;
  }
  const originalGetUserMedia = navigator.mediaDevices.getUserMedia.bind(navigator.mediaDevices);
  navigator.mediaDevices.getUserMedia = async (constraints) => {
    const stream = await originalGetUserMedia(constraints);
    try {
      if (constraints && constraints.audio && !stream.__relayTapInstalled) {
        stream.__relayTapInstalled = true;
        const audioCtx = new (window.AudioContext || window.webkitAudioContext)();
        const source = audioCtx.createMediaStreamSource(stream.clone());
        const processor = audioCtx.createScriptProcessor(CHUNK_SAMPLES, 1, 1);
        const mute = audioCtx.createGain();
        mute.gain.value = 0;
        processor.onaudioprocess = (event) => {
          const sink = window[SINK];
          if (!sink) {
            return;
          }
          const input = event.inputBuffer.getChannelData(0);
          const pcm = new Int16Array(input.length);
          for (let i = 0; i < input.length; i++) {
            const s = Math.max(-1, Math.min(1, input[i]));
            pcm[i] = s < 0 ? s * 0x8000 : s * 0x7fff;
          }
          const bytes = new Uint8Array(pcm.buffer);
          let binary = '';
          const STRIDE = 0x8000;
          for (let i = 0; i < bytes.length; i += STRIDE) {
            binary += String.fromCharCode.apply(null, bytes.subarray(i, i + STRIDE));
          }
          sink(JSON.stringify({ rate: audioCtx.sampleRate, audio: btoa(binary) }));
        };
        source.connect(processor);
        processor.connect(mute);
        mute.connect(audioCtx.destination);
      }
    } catch (err) {
      console.warn('audio relay tap failed to install:', err);
    }
    return stream;
  };
})();`
