package iface

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const airmonRenamed = `PHY	Interface	Driver		Chipset
phy0	wlan0		ath9k_htc	Qualcomm Atheros Communications AR9271
		(mac80211 monitor mode vif enabled for [phy0]wlan0 on [phy0]wlan0mon)
		(mac80211 station mode vif disabled for [phy0]wlan0)`

func TestEnterLeaveMonitorMode(t *testing.T) {
	mode := &fakeMode{startOut: airmonRenamed}
	svcs := newFakeServices("NetworkManager")
	sm := NewStateMachine(WirelessInterface{Name: "wlan0", Wireless: true}, mode, svcs, nil)
	ctx := context.Background()

	assert.Equal(t, StateManaged, sm.State())
	assert.Equal(t, "wlan0", sm.ActiveDevice())

	dev, err := sm.EnterMonitorMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wlan0mon", dev)
	assert.Equal(t, StateMonitor, sm.State())
	assert.Equal(t, "wlan0mon", sm.ActiveDevice())
	assert.False(t, svcs.running["NetworkManager"])
	assert.Equal(t, []string{"NetworkManager"}, sm.StoppedServices())
	assert.Equal(t, 1, mode.checkKill)

	require.NoError(t, sm.LeaveMonitorMode(ctx))
	assert.Equal(t, StateManaged, sm.State())
	assert.Equal(t, "wlan0", sm.ActiveDevice())
	assert.Equal(t, []string{"wlan0mon"}, mode.stops)
	assert.True(t, svcs.running["NetworkManager"])
	assert.Empty(t, sm.StoppedServices())
}

func TestEnterMonitorModeIdempotent(t *testing.T) {
	mode := &fakeMode{startOut: airmonRenamed}
	sm := NewStateMachine(WirelessInterface{Name: "wlan0"}, mode, newFakeServices(), nil)
	ctx := context.Background()

	first, err := sm.EnterMonitorMode(ctx)
	require.NoError(t, err)
	second, err := sm.EnterMonitorMode(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mode.starts)
}

func TestEnterMonitorModeFailure(t *testing.T) {
	mode := &fakeMode{startOut: "ERROR adding monitor mode interface", startErr: errors.New("exit status 1")}
	svcs := newFakeServices("NetworkManager")
	sm := NewStateMachine(WirelessInterface{Name: "wlan0"}, mode, svcs, nil)

	dev, err := sm.EnterMonitorMode(context.Background())
	require.Error(t, err)
	assert.Empty(t, dev)
	assert.ErrorIs(t, err, ErrModeSwitchFailed)

	var mse *ModeSwitchError
	require.ErrorAs(t, err, &mse)
	assert.Equal(t, "wlan0", mse.Interface)
	assert.Contains(t, mse.Error(), "ERROR adding monitor mode interface")

	assert.Equal(t, StateManaged, sm.State())
	assert.Equal(t, "wlan0", sm.ActiveDevice())
	assert.True(t, svcs.running["NetworkManager"], "service restarted after failed switch")
}

func TestEnterMonitorModeBestEffortSteps(t *testing.T) {
	mode := &fakeMode{startOut: airmonRenamed, killErr: errors.New("no airmon")}
	svcs := newFakeServices()
	svcs.stopErr = errors.New("unit not loaded")
	sm := NewStateMachine(WirelessInterface{Name: "wlan0"}, mode, svcs, nil)

	dev, err := sm.EnterMonitorMode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wlan0mon", dev)
	assert.Empty(t, sm.StoppedServices())
}

func TestMonitorNameFallback(t *testing.T) {
	t.Run("guessed name exists", func(t *testing.T) {
		sm := NewStateMachine(WirelessInterface{Name: "wlan1"}, &fakeMode{startOut: "done"}, nil, nil)
		sm.Exists = func(name string) bool { return name == "wlan1mon" }
		dev, err := sm.EnterMonitorMode(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "wlan1mon", dev)
	})

	t.Run("renamed in place", func(t *testing.T) {
		sm := NewStateMachine(WirelessInterface{Name: "wlan1"}, &fakeMode{startOut: "done"}, nil, nil)
		sm.Exists = func(string) bool { return false }
		dev, err := sm.EnterMonitorMode(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "wlan1", dev)
	})
}

func TestLeaveMonitorMode(t *testing.T) {
	t.Run("no-op when managed", func(t *testing.T) {
		mode := &fakeMode{}
		sm := NewStateMachine(WirelessInterface{Name: "wlan0"}, mode, newFakeServices(), nil)
		require.NoError(t, sm.LeaveMonitorMode(context.Background()))
		assert.Empty(t, mode.stops)
	})

	t.Run("failure stays in monitor", func(t *testing.T) {
		mode := &fakeMode{startOut: airmonRenamed, stopErr: errors.New("busy")}
		sm := NewStateMachine(WirelessInterface{Name: "wlan0"}, mode, newFakeServices(), nil)
		_, err := sm.EnterMonitorMode(context.Background())
		require.NoError(t, err)

		err = sm.LeaveMonitorMode(context.Background())
		assert.ErrorIs(t, err, ErrModeSwitchFailed)
		assert.Equal(t, StateMonitor, sm.State())
		assert.Equal(t, "wlan0mon", sm.ActiveDevice())
	})

	t.Run("found under managed name after rename", func(t *testing.T) {
		mode := &fakeMode{}
		wi := WirelessInterface{Name: "wlan0", MonitorName: "wlan0mon", Monitor: true}
		sm := NewStateMachine(wi, mode, newFakeServices(), nil)
		assert.Equal(t, StateMonitor, sm.State())
		assert.Equal(t, "wlan0mon", sm.ActiveDevice())

		require.NoError(t, sm.LeaveMonitorMode(context.Background()))
		assert.Equal(t, []string{"wlan0mon"}, mode.stops)
		assert.Equal(t, "wlan0", sm.ActiveDevice())
	})

	t.Run("discovered in monitor", func(t *testing.T) {
		mode := &fakeMode{}
		sm := NewStateMachine(WirelessInterface{Name: "mon0", Monitor: true}, mode, newFakeServices(), nil)
		assert.Equal(t, StateMonitor, sm.State())
		require.NoError(t, sm.LeaveMonitorMode(context.Background()))
		assert.Equal(t, []string{"mon0"}, mode.stops)
	})
}

func TestEnterMonitorModeSerialized(t *testing.T) {
	mode := &fakeMode{startOut: airmonRenamed, startDelay: 20 * time.Millisecond}
	sm := NewStateMachine(WirelessInterface{Name: "wlan0"}, mode, newFakeServices("NetworkManager"), nil)

	const callers = 8
	var wg sync.WaitGroup
	devs := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			devs[i], errs[i] = sm.EnterMonitorMode(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "wlan0mon", devs[i])
	}
	assert.Equal(t, 1, mode.starts)
	assert.Equal(t, 1, mode.checkKill)
	assert.Equal(t, StateMonitor, sm.State())
}

func TestRestoreServicesIdempotent(t *testing.T) {
	svcs := newFakeServices("NetworkManager")
	sm := NewStateMachine(WirelessInterface{Name: "wlan0"}, &fakeMode{startOut: airmonRenamed}, svcs, nil)
	ctx := context.Background()

	_, err := sm.EnterMonitorMode(ctx)
	require.NoError(t, err)
	require.NoError(t, sm.RestoreServices(ctx))
	require.NoError(t, sm.RestoreServices(ctx))
	assert.Equal(t, 1, svcs.starts)
	assert.True(t, svcs.running["NetworkManager"])
}
