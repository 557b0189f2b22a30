package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"androidmirror/adb"
	"androidmirror/adb/adbtest"
	"androidmirror/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeDevices = "List of devices attached\n" +
	"R58M1 device model:Pixel7\n" +
	"192.168.1.5:5555 device model:Tab_S8\n" +
	"emulator-5554 device\n"

func newTestBuilder(runner adb.Runner, maxParallel int) *CatalogBuilder {
	client := adb.NewADBClient(runner, "adb", zerolog.Nop())
	return NewCatalogBuilder(client, maxParallel, zerolog.Nop())
}

func TestCatalogBuilder_Build(t *testing.T) {
	runner := adbtest.NewFakeRunner().
		On("adb", adb.DevicesArgs(), adbtest.Response{Stdout: threeDevices}).
		On("adb", adb.PackagesArgs("R58M1"), adbtest.Response{Stdout: "package:com.a\npackage:com.b\n"}).
		On("adb", adb.PackagesArgs("192.168.1.5:5555"), adbtest.Response{Stdout: "package:com.c\n"}).
		On("adb", adb.PackagesArgs("emulator-5554"), adbtest.Response{Stdout: ""})
	b := newTestBuilder(runner, 2)
	fixed := time.Date(2025, 1, 26, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	snapshot, err := b.Build(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, snapshot.ID)
	assert.Equal(t, fixed, snapshot.RefreshedAt)
	require.Len(t, snapshot.Devices, 3)

	assert.Equal(t, "R58M1", snapshot.Devices[0].ID)
	assert.Equal(t, []models.Application{{PackageID: "com.a"}, {PackageID: "com.b"}}, snapshot.Devices[0].Applications)
	assert.Equal(t, models.ConnectionNetwork, snapshot.Devices[1].Connection)
	assert.Equal(t, []models.Application{{PackageID: "com.c"}}, snapshot.Devices[1].Applications)
	assert.Empty(t, snapshot.Devices[2].Applications)
	assert.Empty(t, snapshot.Devices[2].Warning)
}

func TestCatalogBuilder_PerDeviceFailureIsIsolated(t *testing.T) {
	runner := adbtest.NewFakeRunner().
		On("adb", adb.DevicesArgs(), adbtest.Response{Stdout: threeDevices}).
		On("adb", adb.PackagesArgs("R58M1"), adbtest.Response{Stdout: "package:com.a\n"}).
		On("adb", adb.PackagesArgs("192.168.1.5:5555"), adbtest.Response{
			Err: adbtest.ExitError("adb", adb.PackagesArgs("192.168.1.5:5555"), 1, "device offline"),
		}).
		On("adb", adb.PackagesArgs("emulator-5554"), adbtest.Response{Stdout: "package:com.e\n"})

	snapshot, err := newTestBuilder(runner, 4).Build(context.Background())

	require.NoError(t, err)
	require.Len(t, snapshot.Devices, 3)
	failed := snapshot.Devices[1]
	assert.Equal(t, "192.168.1.5:5555", failed.ID)
	assert.NotNil(t, failed.Applications)
	assert.Empty(t, failed.Applications)
	assert.Contains(t, failed.Warning, "device offline")
	assert.Len(t, snapshot.Devices[0].Applications, 1)
	assert.Len(t, snapshot.Devices[2].Applications, 1)
}

func TestCatalogBuilder_EnumerationFailure(t *testing.T) {
	runner := adbtest.NewFakeRunner().
		On("adb", adb.DevicesArgs(), adbtest.Response{
			Err: adbtest.ExitError("adb", adb.DevicesArgs(), 1, "daemon not running"),
		})

	snapshot, err := newTestBuilder(runner, 4).Build(context.Background())

	assert.Nil(t, snapshot)
	require.Error(t, err)
	assert.True(t, IsRefreshError(err))
	assert.True(t, adb.IsKind(err, adb.ErrKindExit))
	assert.Equal(t, 1, len(runner.Calls()))
}

func TestCatalogBuilder_NoDevices(t *testing.T) {
	runner := adbtest.NewFakeRunner().
		On("adb", adb.DevicesArgs(), adbtest.Response{Stdout: "List of devices attached\n\n"})

	snapshot, err := newTestBuilder(runner, 4).Build(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, snapshot.Devices)
	assert.Empty(t, snapshot.Devices)
}

func TestCatalogBuilder_DeduplicatesCatalog(t *testing.T) {
	runner := adbtest.NewFakeRunner().
		On("adb", adb.DevicesArgs(), adbtest.Response{
			Stdout: "List of devices attached\nABC device model:First\nABC device model:Second\n",
		}).
		On("adb", adb.PackagesArgs("ABC"), adbtest.Response{Stdout: "package:com.a\npackage:com.a\npackage:com.b\n"})

	snapshot, err := newTestBuilder(runner, 4).Build(context.Background())

	require.NoError(t, err)
	require.Len(t, snapshot.Devices, 1)
	assert.Equal(t, "First", snapshot.Devices[0].DisplayName)
	assert.Equal(t, []models.Application{{PackageID: "com.a"}, {PackageID: "com.b"}}, snapshot.Devices[0].Applications)
	assert.Equal(t, 1, runner.CallCount("adb", adb.PackagesArgs("ABC")))
}

func TestCatalogBuilder_BoundsParallelism(t *testing.T) {
	var out strings.Builder
	out.WriteString("List of devices attached\n")
	runner := adbtest.NewFakeRunner()
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("SERIAL%d", i)
		out.WriteString(id + " device\n")
		runner.On("adb", adb.PackagesArgs(id), adbtest.Response{Stdout: "package:com.x\n", Delay: 30 * time.Millisecond})
	}
	runner.On("adb", adb.DevicesArgs(), adbtest.Response{Stdout: out.String()})

	snapshot, err := newTestBuilder(runner, 2).Build(context.Background())

	require.NoError(t, err)
	assert.Len(t, snapshot.Devices, 6)
	assert.LessOrEqual(t, runner.MaxConcurrent(), 2)
}

func TestCatalogBuilder_Canceled(t *testing.T) {
	runner := adbtest.NewFakeRunner().
		On("adb", adb.DevicesArgs(), adbtest.Response{Stdout: threeDevices}).
		On("adb", adb.PackagesArgs("R58M1"), adbtest.Response{Delay: time.Second}).
		On("adb", adb.PackagesArgs("192.168.1.5:5555"), adbtest.Response{Delay: time.Second}).
		On("adb", adb.PackagesArgs("emulator-5554"), adbtest.Response{Delay: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	snapshot, err := newTestBuilder(runner, 4).Build(ctx)

	assert.Nil(t, snapshot)
	assert.True(t, IsRefreshError(err))
	assert.ErrorIs(t, err, context.Canceled)
}
