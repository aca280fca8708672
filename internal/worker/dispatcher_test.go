package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rbright/imgworker/internal/imageops"
	"github.com/rbright/imgworker/internal/protocol"
	"github.com/rbright/imgworker/internal/version"
	"github.com/stretchr/testify/require"
)

type fakeConverter struct {
	calls [][2]string
	err   error
	panic any
}

func (f *fakeConverter) ToGray(_ context.Context, input, output string) error {
	f.calls = append(f.calls, [2]string{input, output})
	if f.panic != nil {
		panic(f.panic)
	}
	return f.err
}

func encodeResult(t *testing.T, result protocol.Result) string {
	t.Helper()
	data, err := result.Encode()
	require.NoError(t, err)
	return string(data)
}

func TestDispatcherVersionQuery(t *testing.T) {
	d := NewDispatcher(&fakeConverter{})

	result := d.Handle(context.Background(), protocol.VersionQuery{})
	require.Nil(t, result.Failure)
	require.Equal(t, version.Runtime(), result.Payload[VersionKey])
	require.NotContains(t, result.Payload, "error")
	require.NotContains(t, result.Payload, "exception")
}

func TestDispatcherConvertToGrayWithRealImage(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "color.png")
	output := filepath.Join(dir, "gray.png")

	src := imaging.New(4, 4, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	require.NoError(t, imaging.Save(src, input))

	d := NewDispatcher(imageops.NewConverter(imageops.DefaultOptions()))
	result := d.Handle(context.Background(), protocol.ConvertToGray{Input: input, Output: output})
	require.Nil(t, result.Failure)
	require.Equal(t, "{}", encodeResult(t, result))

	inFile, err := os.Open(input)
	require.NoError(t, err)
	defer inFile.Close()
	inCfg, err := png.DecodeConfig(inFile)
	require.NoError(t, err)
	require.Equal(t, color.RGBAModel, inCfg.ColorModel)

	outFile, err := os.Open(output)
	require.NoError(t, err)
	defer outFile.Close()
	decoded, err := png.Decode(outFile)
	require.NoError(t, err)
	require.IsType(t, &image.Gray{}, decoded)
}

func TestDispatcherMissingInputReportsExceptionWithoutOutput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.png")

	d := NewDispatcher(imageops.NewConverter(imageops.DefaultOptions()))
	result := d.Handle(context.Background(), protocol.ConvertToGray{
		Input:  filepath.Join(dir, "does-not-exist.png"),
		Output: output,
	})
	require.NotNil(t, result.Failure)
	require.Equal(t, protocol.KindDecode, result.Failure.Kind)
	require.Contains(t, encodeResult(t, result), `"exception":`)

	_, err := os.Stat(output)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDispatcherNilRequestIsUnknown(t *testing.T) {
	d := NewDispatcher(&fakeConverter{})
	result := d.Handle(context.Background(), nil)
	require.Equal(t, `{"error":"Unknown command."}`, encodeResult(t, result))
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := NewDispatcher(&fakeConverter{panic: "codec exploded"})

	result := d.Handle(context.Background(), protocol.ConvertToGray{Input: "a.png", Output: "b.png"})
	require.NotNil(t, result.Failure)
	require.Equal(t, protocol.KindInternal, result.Failure.Kind)
	require.Contains(t, result.Failure.Error(), "panic handling to_gray")
	require.Contains(t, result.Failure.Error(), "codec exploded")
}

func TestDispatcherClassifiesConverterErrors(t *testing.T) {
	tests := []struct {
		err  error
		want protocol.FailureKind
	}{
		{err: fmt.Errorf("%w: %q", imageops.ErrUnsupportedFormat, ".xyz"), want: protocol.KindUnsupportedFormat},
		{err: fmt.Errorf("%w: boom", imageops.ErrDecode), want: protocol.KindDecode},
		{err: fmt.Errorf("%w: boom", imageops.ErrEncode), want: protocol.KindEncode},
		{err: context.Canceled, want: protocol.KindInternal},
		{err: errors.New("other"), want: protocol.KindInternal},
	}

	for _, tc := range tests {
		conv := &fakeConverter{err: tc.err}
		result := NewDispatcher(conv).Handle(context.Background(), protocol.ConvertToGray{Input: "in.png", Output: "out.png"})
		require.NotNil(t, result.Failure, tc.err.Error())
		require.Equal(t, tc.want, result.Failure.Kind, tc.err.Error())
		require.Equal(t, [][2]string{{"in.png", "out.png"}}, conv.calls)
	}
}

func TestHandlerFuncAdapter(t *testing.T) {
	h := HandlerFunc(func(_ context.Context, req protocol.Request) protocol.Result {
		return protocol.OK(map[string]any{"cmd": int(req.Command())})
	})
	result := h.Handle(context.Background(), protocol.ConvertToGray{})
	require.Equal(t, 1, result.Payload["cmd"])
}
