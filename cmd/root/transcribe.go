package root

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/murmur-app/murmur/pkg/audio"
	"github.com/murmur-app/murmur/pkg/dictation"
)

type transcribeFlags struct {
	save       bool
	rawPCM     bool
	sampleRate int
	duration   float64
}

func newTranscribeCmd() *cobra.Command {
	var flags transcribeFlags

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio clip",
		Long:  "Send a WAV file for transcription and print the text",
		Example: `  murmur transcribe recording.wav
  murmur transcribe --save recording.wav
  murmur transcribe --raw --sample-rate 16000 samples.pcm`,
		Args: cobra.ExactArgs(1),
		RunE: flags.runTranscribeCommand,
	}

	cmd.Flags().BoolVar(&flags.save, "save", false, "Save the transcription to history")
	cmd.Flags().BoolVar(&flags.rawPCM, "raw", false, "Treat the input as raw mono 16-bit PCM instead of WAV")
	cmd.Flags().IntVar(&flags.sampleRate, "sample-rate", audio.DefaultSampleRate, "Sample rate for raw PCM input")
	cmd.Flags().Float64Var(&flags.duration, "duration", 0, "Clip duration in seconds, recorded with --save")

	return cmd
}

func (f *transcribeFlags) runTranscribeCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	clip, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading audio file: %w", err)
	}

	switch {
	case f.rawPCM:
		clip = audio.EncodeWAV(clip, f.sampleRate)
	case !audio.IsWAV(clip):
		return fmt.Errorf("%s is not a WAV file (use --raw for raw PCM input)", args[0])
	}

	service, err := dictation.OpenDefault()
	if err != nil {
		return err
	}
	defer service.Close()

	result := service.Transcribe(ctx, clip)
	if !result.Success {
		return errors.New(result.Error)
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Text)

	if f.save {
		id, err := service.SaveTranscription(ctx, result.Text, f.duration)
		if err != nil {
			return fmt.Errorf("saving transcription: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved to history (id %d)\n", id)
	}

	return nil
}
