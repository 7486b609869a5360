package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiopipe/pkg/errors"
	"studiopipe/pkg/models"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, params)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func samplePayloads() [][]byte {
	return [][]byte{
		[]byte(`{"fan_id":"FAN-BATCH1-0a1b2c3d","email":null}`),
		[]byte(`{"fan_id":"FAN-BATCH1-deadbeef","email":"fan-batch1-deadbeef@example.com"}`),
	}
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(samplePayloads())
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, samplePayloads(), decoded)

	empty, err := Encode(nil)
	require.NoError(t, err)
	decoded, err = Decode(empty)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestEncodeRejectsMultilinePayload(t *testing.T) {
	_, err := Encode([][]byte{[]byte("{\n}")})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeArchiveFailed, errors.GetErrorCode(err))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("plain text"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeArchiveFailed, errors.GetErrorCode(err))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "run-1/batch_3_fans.json.sz", Key("run-1", "batch_3_fans.json"))
}

func TestLocalArchiver(t *testing.T) {
	dir := t.TempDir()
	archiver, err := New(context.Background(), models.Archive{Dir: dir}, "run-7")
	require.NoError(t, err)
	require.NotNil(t, archiver)

	location, err := archiver.Store(context.Background(), "batch_2_box_office.json", samplePayloads())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-7", "batch_2_box_office.json.sz"), location)

	decoded, err := DecodeFile(location)
	require.NoError(t, err)
	assert.Equal(t, samplePayloads(), decoded)

	info, err := os.Stat(filepath.Join(dir, "run-7"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDisabledArchiverIsNoop(t *testing.T) {
	archiver, err := New(context.Background(), models.Archive{}, "run")
	require.NoError(t, err)
	assert.Nil(t, archiver)

	location, err := archiver.Store(context.Background(), "batch_1_fans.json", samplePayloads())
	assert.NoError(t, err)
	assert.Empty(t, location)
}

func TestS3Sink(t *testing.T) {
	client := &fakeS3{}
	archiver := NewArchiver(NewS3SinkWithClient(client, "studio-archive", "studiopipe"), "run-9")

	location, err := archiver.Store(context.Background(), "batch_1_fans.json", samplePayloads())
	require.NoError(t, err)
	assert.Equal(t, "s3://studio-archive/studiopipe/run-9/batch_1_fans.json.sz", location)

	require.Len(t, client.inputs, 1)
	assert.Equal(t, "studio-archive", aws.ToString(client.inputs[0].Bucket))
	assert.Equal(t, "studiopipe/run-9/batch_1_fans.json.sz", aws.ToString(client.inputs[0].Key))
	assert.Equal(t, int64(len(client.bodies[0])), aws.ToInt64(client.inputs[0].ContentLength))

	decoded, err := Decode(client.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, samplePayloads(), decoded)
}

func TestS3SinkWithoutPrefix(t *testing.T) {
	sink := NewS3SinkWithClient(&fakeS3{}, "bucket", "")
	assert.Equal(t, "s3://bucket/run/x.sz", sink.Location("run/x.sz"))
}

func TestS3SinkFailure(t *testing.T) {
	archiver := NewArchiver(NewS3SinkWithClient(&fakeS3{err: fmt.Errorf("AccessDenied")}, "b", "p"), "run")

	_, err := archiver.Store(context.Background(), "batch_1_fans.json", samplePayloads())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeArchiveFailed, errors.GetErrorCode(err))
}

func TestMultiSink(t *testing.T) {
	dir := t.TempDir()
	local, err := NewLocalSink(dir)
	require.NoError(t, err)
	client := &fakeS3{}

	archiver := NewArchiver(MultiSink([]Sink{local, NewS3SinkWithClient(client, "b", "")}), "run")
	location, err := archiver.Store(context.Background(), "batch_1_fans.json", samplePayloads())
	require.NoError(t, err)

	assert.Contains(t, location, filepath.Join(dir, "run", "batch_1_fans.json.sz"))
	assert.Contains(t, location, "s3://b/run/batch_1_fans.json.sz")
	assert.Len(t, client.inputs, 1)
}

func TestLocalSinkCancelled(t *testing.T) {
	local, err := NewLocalSink(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, local.Put(ctx, "k", []byte("v")))
}
