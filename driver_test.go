package uart

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/go-stm32-uart/sim"
	"github.com/luhtfiimanal/go-stm32-uart/stm32f1"
)

const (
	srAddr      = stm32f1.USART2Base + stm32f1.USART_SR
	drAddr      = stm32f1.USART2Base + stm32f1.USART_DR
	brrAddr     = stm32f1.USART2Base + stm32f1.USART_BRR
	cr1Addr     = stm32f1.USART2Base + stm32f1.USART_CR1
	crlAddr     = stm32f1.GPIOABase + stm32f1.GPIO_CRL
	apb1enrAddr = stm32f1.RCCBase + stm32f1.RCC_APB1ENR
	apb2enrAddr = stm32f1.RCCBase + stm32f1.RCC_APB2ENR
)

func newSimDriver(t *testing.T, scfg sim.Config, cfg Config) (*Driver, *sim.Machine) {
	t.Helper()
	m := sim.New(scfg, zerolog.Nop())
	t.Cleanup(func() { m.Close() })
	d, err := New(m.Device(), cfg)
	require.NoError(t, err)
	return d, m
}

func stores(trace []sim.Access) []sim.Access {
	var out []sim.Access
	for _, a := range trace {
		if a.Op == sim.OpStore {
			out = append(out, a)
		}
	}
	return out
}

func TestInitEnablesClocks(t *testing.T) {
	d, m := newSimDriver(t, sim.Config{}, DefaultConfig())
	d.Init()

	require.NotZero(t, m.Peek(apb2enrAddr)&stm32f1.RCC_APB2ENR_IOPAEN)
	require.NotZero(t, m.Peek(apb1enrAddr)&stm32f1.RCC_APB1ENR_USART2EN)

	d.SendLine("still on")
	m.Feed([]byte{'x'})
	d.ReceiveByte()

	require.NotZero(t, m.Peek(apb2enrAddr)&stm32f1.RCC_APB2ENR_IOPAEN)
	require.NotZero(t, m.Peek(apb1enrAddr)&stm32f1.RCC_APB1ENR_USART2EN)
}

func TestInitRegisterProgram(t *testing.T) {
	d, m := newSimDriver(t, sim.Config{Trace: true}, DefaultConfig())
	d.Init()

	want := []sim.Access{
		{Op: sim.OpStore, Addr: apb2enrAddr, Value: stm32f1.RCC_APB2ENR_IOPAEN},
		{Op: sim.OpStore, Addr: apb1enrAddr, Value: stm32f1.RCC_APB1ENR_USART2EN},
		{Op: sim.OpStore, Addr: brrAddr, Value: 4<<4 | 5},
		{Op: sim.OpStore, Addr: cr1Addr, Value: stm32f1.USART_CR1_UE | stm32f1.USART_CR1_TE | stm32f1.USART_CR1_RE},
		{Op: sim.OpStore, Addr: crlAddr, Value: 0x4444_4044},
		{Op: sim.OpStore, Addr: crlAddr, Value: 0x4444_4944},
	}
	require.Equal(t, want, stores(m.Trace()))

	crl := m.Peek(crlAddr)
	require.Equal(t, uint32(stm32f1.GPIO_CNF_AltPushPull), stm32f1.GPIO_CR_CNF(stm32f1.PinUSART2TX).Get(crl))
	require.Equal(t, uint32(stm32f1.GPIO_MODE_Output10M), stm32f1.GPIO_CR_MODE(stm32f1.PinUSART2TX).Get(crl))
	require.Equal(t, uint32(stm32f1.GPIO_CNF_InFloating), stm32f1.GPIO_CR_CNF(stm32f1.PinUSART2RX).Get(crl))
	require.Equal(t, uint32(stm32f1.GPIO_MODE_Input), stm32f1.GPIO_CR_MODE(stm32f1.PinUSART2RX).Get(crl))
}

func TestInitComputedDivisor(t *testing.T) {
	d, m := newSimDriver(t, sim.Config{}, Config{ClockHz: 8_000_000, Baud: 9_600})
	d.Init()

	require.Equal(t, Divisor{Mantissa: 52, Fraction: 1}, d.Divisor())
	require.Equal(t, uint32(0x341), m.Peek(brrAddr))
}

func TestNewRejectsBadConfig(t *testing.T) {
	m := sim.New(sim.Config{}, zerolog.Nop())

	_, err := New(m.Device(), Config{ClockHz: 8_000_000, Baud: 1_000_000})
	require.ErrorIs(t, err, ErrDivisorRange)

	_, err = New(m.Device(), Config{Divisor: Divisor{Mantissa: 0x1000}})
	require.ErrorIs(t, err, ErrDivisorRange)

	_, err = New(m.Device(), Config{})
	require.ErrorIs(t, err, ErrInvalidBaud)

	_, err = New(nil, DefaultConfig())
	require.Error(t, err)

	require.NoError(t, DefaultConfig().Validate())
}

func TestSendByteWaitsForTXE(t *testing.T) {
	d, m := newSimDriver(t, sim.Config{TxLatency: 3, Trace: true}, DefaultConfig())
	d.Init()
	m.ClearTrace()

	require.Equal(t, byte('a'), d.SendByte('a'))
	require.Equal(t, byte('b'), d.SendByte('b'))

	var (
		lastSR   uint32
		busy     int
		dataSent []uint32
	)
	for _, a := range m.Trace() {
		switch {
		case a.Op == sim.OpLoad && a.Addr == srAddr:
			lastSR = a.Value
			if a.Value&stm32f1.USART_SR_TXE == 0 {
				busy++
			}
		case a.Op == sim.OpStore && a.Addr == drAddr:
			require.NotZero(t, lastSR&stm32f1.USART_SR_TXE, "DR written before TXE was seen")
			dataSent = append(dataSent, a.Value)
			lastSR = 0
		}
	}
	require.Equal(t, []uint32{'a', 'b'}, dataSent)
	require.Equal(t, 2, busy)
	require.Equal(t, []byte("ab"), m.TakeOutput())
}

func TestSendLine(t *testing.T) {
	d, m := newSimDriver(t, sim.Config{TxLatency: 1}, DefaultConfig())
	d.Init()

	require.True(t, d.SendLine("ello World!"))
	require.Equal(t, "ello World!\n", string(m.TakeOutput()))

	require.True(t, d.SendLine(""))
	require.Equal(t, "\n", string(m.TakeOutput()))
}

func TestReceiveByte(t *testing.T) {
	d, m := newSimDriver(t, sim.Config{}, DefaultConfig())
	d.Init()

	m.Feed([]byte("Z"))
	require.Equal(t, byte('Z'), d.ReceiveByte())

	// A byte that arrived with a framing error is still handed over.
	m.InjectErrors(stm32f1.USART_SR_FE)
	m.Feed([]byte{0x41})
	require.Equal(t, byte(0x41), d.ReceiveByte())
}

func TestReceiveBlocksUntilData(t *testing.T) {
	d, m := newSimDriver(t, sim.Config{}, DefaultConfig())
	d.Init()

	got := make(chan byte, 1)
	go func() { got <- d.ReceiveByte() }()

	select {
	case <-got:
		t.Fatal("ReceiveByte returned without data")
	case <-time.After(20 * time.Millisecond):
	}

	m.Feed([]byte("q"))
	select {
	case c := <-got:
		require.Equal(t, byte('q'), c)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for ReceiveByte")
	}
}

func TestContextVariantsBeforeInit(t *testing.T) {
	// Without Init the USART is unclocked: SR reads zero forever.
	d, _ := newSimDriver(t, sim.Config{}, DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.ReceiveByteContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = d.SendByteContext(ctx, 'x')
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.ErrorIs(t, d.SendLineContext(ctx, "x"), context.DeadlineExceeded)
}

func TestContextVariants(t *testing.T) {
	d, m := newSimDriver(t, sim.Config{}, DefaultConfig())
	d.Init()
	ctx := context.Background()

	c, err := d.SendByteContext(ctx, 'H')
	require.NoError(t, err)
	require.Equal(t, byte('H'), c)
	require.NoError(t, d.SendLineContext(ctx, "i"))
	require.Equal(t, "Hi\n", string(m.TakeOutput()))

	m.Feed([]byte("k"))
	c, err = d.ReceiveByteContext(ctx)
	require.NoError(t, err)
	require.Equal(t, byte('k'), c)
}

func TestReadWrite(t *testing.T) {
	d, m := newSimDriver(t, sim.Config{}, DefaultConfig())
	d.Init()

	n, err := d.Write([]byte("hey"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	n, err = d.WriteString(" you")
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "hey you", string(m.TakeOutput()))

	m.Feed([]byte("abc"))
	buf := make([]byte, 8)
	n, err = d.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "abc", string(buf[:n]))

	n, err = d.Read(nil)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestLineStatus(t *testing.T) {
	d, m := newSimDriver(t, sim.Config{}, DefaultConfig())
	d.Init()

	st := d.LineStatus()
	require.True(t, st.TxEmpty())
	require.True(t, st.TxComplete())
	require.False(t, st.RxNotEmpty())
	require.NoError(t, st.Err())

	m.InjectErrors(stm32f1.USART_SR_FE | stm32f1.USART_SR_ORE)
	m.Feed([]byte{1})
	st = d.LineStatus()
	require.True(t, st.RxNotEmpty())
	require.ErrorIs(t, st.Err(), ErrFraming)
	require.ErrorIs(t, st.Err(), ErrOverrun)
	require.NotErrorIs(t, st.Err(), ErrParity)

	d.ReceiveByte()
	require.NoError(t, d.LineStatus().Err())
}
