package adb

import (
	"testing"

	"androidmirror/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDevices_EndToEnd(t *testing.T) {
	out := "List of devices attached\nR58M1 device model:Pixel7\n192.168.1.5:5555 device\n"

	devices := ParseDevices(out)

	require.Len(t, devices, 2)
	assert.Equal(t, "R58M1", devices[0].ID)
	assert.Equal(t, "Pixel7", devices[0].DisplayName)
	assert.Equal(t, models.ConnectionUSB, devices[0].Connection)
	assert.Equal(t, "192.168.1.5:5555", devices[1].ID)
	assert.Equal(t, "192.168.1.5:5555", devices[1].DisplayName)
	assert.Equal(t, models.ConnectionNetwork, devices[1].Connection)
	for _, d := range devices {
		assert.NotNil(t, d.Applications)
		assert.Empty(t, d.Applications)
	}
}

func TestParseDevices_RealAdbOutput(t *testing.T) {
	out := "* daemon not running; starting now at tcp:5037\r\n" +
		"* daemon started successfully\r\n" +
		"List of devices attached\r\n" +
		"R58M20ABCDE            device usb:1-1 product:o1sxxx model:SM_G991B device:o1s transport_id:2\r\n" +
		"adb-R58M20ABCDE-xyz._adb-tls-connect._tcp device product:o1sxxx model:SM_G991B device:o1s transport_id:3\r\n" +
		"emulator-5554          offline\r\n" +
		"\r\n"

	devices := ParseDevices(out)

	require.Len(t, devices, 3)

	assert.Equal(t, "SM_G991B", devices[0].DisplayName)
	assert.Equal(t, "device", devices[0].State)
	assert.Equal(t, models.ConnectionUSB, devices[0].Connection)
	assert.Equal(t, map[string]string{
		"usb":          "1-1",
		"product":      "o1sxxx",
		"device":       "o1s",
		"transport_id": "2",
	}, devices[0].Attributes)

	assert.Equal(t, models.ConnectionNetwork, devices[1].Connection)

	assert.Equal(t, "emulator-5554", devices[2].ID)
	assert.Equal(t, "emulator-5554", devices[2].DisplayName)
	assert.Equal(t, "offline", devices[2].State)
}

func TestParseDevices_ModelToken(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{"model anywhere after id", "ABC device product:x model:Pixel7 device:y", "Pixel7"},
		{"no model token", "ABC device product:x", "ABC"},
		{"substring is not a match", "ABC device xmodel:Fake", "ABC"},
		{"empty model value", "ABC device model:", "ABC"},
		{"first model wins", "ABC model:One model:Two", "One"},
		{"id only", "ABC", "ABC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices := ParseDevices("List of devices attached\n" + tt.line + "\n")
			require.Len(t, devices, 1)
			assert.Equal(t, tt.expected, devices[0].DisplayName)
		})
	}
}

func TestParseDevices_NoPermissionsLine(t *testing.T) {
	out := "List of devices attached\n" +
		"R58M1 no permissions (user in plugdev group; are your udev rules wrong?); " +
		"see [http://developer.android.com/tools/device.html] usb:1-1\n"

	devices := ParseDevices(out)

	require.Len(t, devices, 1)
	assert.Equal(t, "R58M1", devices[0].ID)
	assert.Equal(t, "no permissions", devices[0].State)
	assert.Equal(t, "R58M1", devices[0].DisplayName)
	assert.Equal(t, map[string]string{"usb": "1-1"}, devices[0].Attributes)
}

func TestParseDevices_AttributeKeys(t *testing.T) {
	devices := ParseDevices("List of devices attached\n" +
		"ABC device usb:1-1 product:sunfish transport_id:3 [http://x] Weird:1\n")

	require.Len(t, devices, 1)
	assert.Equal(t, map[string]string{
		"usb":          "1-1",
		"product":      "sunfish",
		"transport_id": "3",
	}, devices[0].Attributes)
}

func TestParseDevices_SkipsBannerAndBlankLines(t *testing.T) {
	assert.Empty(t, ParseDevices(""))
	assert.Empty(t, ParseDevices("List of devices attached\n"))
	assert.Empty(t, ParseDevices("List of devices attached\n   \n\t\n"))
	assert.NotNil(t, ParseDevices(""))
}

func TestParseDevices_KeepsDuplicates(t *testing.T) {
	devices := ParseDevices("List of devices attached\nABC device\nABC device\n")
	assert.Len(t, devices, 2)
}

func TestParseDevices_Idempotent(t *testing.T) {
	out := "List of devices attached\nR58M1 device model:Pixel7\n192.168.1.5:5555 device\n"
	assert.Equal(t, ParseDevices(out), ParseDevices(out))
}

func TestClassifyConnection(t *testing.T) {
	tests := []struct {
		id       string
		expected models.ConnectionKind
	}{
		{"192.168.1.5:5555", models.ConnectionNetwork},
		{"adb-SERIAL-abc._adb-tls-connect._tcp", models.ConnectionNetwork},
		{"R58M20ABCDE", models.ConnectionUSB},
		{"emulator-5554", models.ConnectionUSB},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyConnection(tt.id))
		})
	}
}

func TestParsePackages(t *testing.T) {
	out := "package:com.example.app\n" +
		"nopackage:foo\n" +
		"  package:com.android.chrome  \r\n" +
		"\n" +
		"package:\n" +
		"Error: something\n" +
		"package:com.example.app\n"

	apps := ParsePackages(out)

	assert.Equal(t, []models.Application{
		{PackageID: "com.example.app"},
		{PackageID: "com.android.chrome"},
		{PackageID: "com.example.app"},
	}, apps)
}

func TestParsePackages_Empty(t *testing.T) {
	apps := ParsePackages("")
	assert.NotNil(t, apps)
	assert.Empty(t, apps)
}
