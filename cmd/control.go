// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/lnbctl/pkg/lnb"
)

var getFormat string

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Read and print the full controller state",
	Long: `Read power, both channel voltages, polarities and bands.

Output formats:
  text - human readable (default)
  json - one JSON object
  cbor - binary CBOR, for piping into other tools`,
	Args: cobra.NoArgs,
	RunE: runGet,
}

var powerCmd = &cobra.Command{
	Use:       "power on|off",
	Short:     "Enable or disable the LNB power supply",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runPower,
}

var polarityCmd = &cobra.Command{
	Use:   "polarity <channel> vertical|right|horizontal|left",
	Short: "Select the polarity (output voltage) of a channel",
	Long: `Select the polarity of channel 1 or 2.

  vertical, right   - 13V
  horizontal, left  - 18V`,
	Args: cobra.ExactArgs(2),
	RunE: runPolarity,
}

var bandCmd = &cobra.Command{
	Use:   "band <channel> low|high",
	Short: "Select the band (22KHz tone) of a channel",
	Long: `Select the band of channel 1 or 2.

  low   - no 22KHz tone
  high  - 22KHz tone enabled`,
	Args: cobra.ExactArgs(2),
	RunE: runBand,
}

func init() {
	rootCmd.AddCommand(getCmd, powerCmd, polarityCmd, bandCmd)
	getCmd.Flags().StringVarP(&getFormat, "format", "f", "text", "Output format: text, json or cbor")
}

// parseChannel accepts "1" or "2"
func parseChannel(s string) (lnb.Channel, error) {
	n, err := strconv.Atoi(s)
	if err != nil || !lnb.Channel(n).Valid() {
		return 0, fmt.Errorf("%w: %q", lnb.ErrInvalidChannel, s)
	}
	return lnb.Channel(n), nil
}

// parseOnOff accepts on/off and the usual boolean spellings
func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "enable", "enabled":
		return true, nil
	case "off", "disable", "disabled":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return b, nil
}

var cborMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// encodeState renders a snapshot in one of the output formats
func encodeState(format string, state lnb.HardwareState) ([]byte, error) {
	switch format {
	case "", "text":
		return []byte(state.String()), nil
	case "json":
		data, err := json.Marshal(state)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "cbor":
		return cborMode.Marshal(state)
	default:
		return nil, fmt.Errorf("unknown format %q (use text, json or cbor)", format)
	}
}

// withSession runs fn against a freshly opened session
func withSession(fn func(s *lnb.Session) error) error {
	s, _, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(s)
}

func runGet(cmd *cobra.Command, args []string) error {
	// Reject a bad format before touching the device
	if _, err := encodeState(getFormat, lnb.HardwareState{}); err != nil {
		return err
	}

	return withSession(func(s *lnb.Session) error {
		state, err := s.ReadFullState()
		if err != nil {
			return err
		}
		data, err := encodeState(getFormat, state)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	})
}

func runPower(cmd *cobra.Command, args []string) error {
	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}

	return withSession(func(s *lnb.Session) error {
		if err := s.SetPower(on); err != nil {
			return err
		}
		if on {
			fmt.Println("Power: ENABLED")
		} else {
			fmt.Println("Power: DISABLED")
		}
		return nil
	})
}

func runPolarity(cmd *cobra.Command, args []string) error {
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	p, err := lnb.ParsePolarity(args[1])
	if err != nil {
		return err
	}

	return withSession(func(s *lnb.Session) error {
		if err := s.SetChannelPolarity(ch, p); err != nil {
			return err
		}
		fmt.Printf("CH%d polarity: %s\n", ch, p.Describe())
		return nil
	})
}

func runBand(cmd *cobra.Command, args []string) error {
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	b, err := lnb.ParseBand(args[1])
	if err != nil {
		return err
	}

	return withSession(func(s *lnb.Session) error {
		if err := s.SetChannelBand(ch, b); err != nil {
			return err
		}
		fmt.Printf("CH%d band: %s\n", ch, b.Describe())
		return nil
	})
}
