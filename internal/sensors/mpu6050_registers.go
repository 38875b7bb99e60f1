// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// MPU-6050 register addresses.
const (
	regXAOffsH     = 0x06
	regYAOffsH     = 0x08
	regZAOffsH     = 0x0A
	regXGOffsUsrH  = 0x13
	regYGOffsUsrH  = 0x15
	regZGOffsUsrH  = 0x17
	regSmplrtDiv   = 0x19
	regConfig      = 0x1A
	regGyroConfig  = 0x1B
	regAccelConfig = 0x1C
	regFIFOEn      = 0x23
	regIntPinCfg   = 0x37
	regIntEnable   = 0x38
	regIntStatus   = 0x3A
	regAccelXoutH  = 0x3B
	regGyroXoutH   = 0x43
	regUserCtrl    = 0x6A
	regPwrMgmt1    = 0x6B
	regBankSel     = 0x6D
	regMemStart    = 0x6E
	regMemRW       = 0x6F
	regDMPCfg1     = 0x70
	regDMPCfg2     = 0x71
	regFIFOCountH  = 0x72
	regFIFORW      = 0x74
	regWhoAmI      = 0x75
)

// Bits and values.
const (
	userCtrlDMPEn     = 1 << 7
	userCtrlFIFOEn    = 1 << 6
	userCtrlDMPReset  = 1 << 3
	userCtrlFIFOReset = 1 << 2

	pwrDeviceReset = 1 << 7
	pwrClockPLLZ   = 0x03

	// WHO_AM_I bits 6:1; the AD0 pin does not change it.
	whoAmIMask  = 0x7E
	whoAmIValue = 0x68

	// MotionApps 2.0 packet: quaternion, gyro, accel.
	dmpPacketSize = 42
	fifoSize      = 1024

	dmpMemBankSize  = 256
	dmpMemChunkSize = 16
	dmpStartAddress = 0x0400
)

// BitField describes one field inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo is metadata for one MPU-6050 register.
type RegisterInfo struct {
	Address   byte       `json:"address"`
	Name      string     `json:"name"`
	Access    string     `json:"access"` // "R", "W", "RW"
	BitFields []BitField `json:"bit_fields,omitempty"`
}

// RegisterMap returns metadata for the registers this driver touches.
// It is what the regdump tool prints next to the live values.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		// Offsets
		{Address: regXAOffsH, Name: "XA_OFFS_H", Access: "RW"},
		{Address: regYAOffsH, Name: "YA_OFFS_H", Access: "RW"},
		{Address: regZAOffsH, Name: "ZA_OFFS_H", Access: "RW"},
		{Address: regXGOffsUsrH, Name: "XG_OFFS_USRH", Access: "RW"},
		{Address: regYGOffsUsrH, Name: "YG_OFFS_USRH", Access: "RW"},
		{Address: regZGOffsUsrH, Name: "ZG_OFFS_USRH", Access: "RW"},

		// Configuration
		{Address: regSmplrtDiv, Name: "SMPLRT_DIV", Access: "RW",
			BitFields: []BitField{
				{Bits: "7:0", Name: "SMPLRT_DIV", Description: "Sample Rate = Gyro_Output_Rate / (1 + SMPLRT_DIV)", Values: "0-255"},
			}},
		{Address: regConfig, Name: "CONFIG", Access: "RW",
			BitFields: []BitField{
				{Bits: "5:3", Name: "EXT_SYNC_SET", Description: "FSYNC pin sampling"},
				{Bits: "2:0", Name: "DLPF_CFG", Description: "Digital Low Pass Filter", Values: "0=260Hz, 1=184Hz, 2=94Hz, 3=44Hz, 4=21Hz, 5=10Hz, 6=5Hz"},
			}},
		{Address: regGyroConfig, Name: "GYRO_CONFIG", Access: "RW",
			BitFields: []BitField{
				{Bits: "4:3", Name: "FS_SEL", Description: "Gyro Full Scale Range", Values: "0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s"},
			}},
		{Address: regAccelConfig, Name: "ACCEL_CONFIG", Access: "RW",
			BitFields: []BitField{
				{Bits: "4:3", Name: "AFS_SEL", Description: "Accel Full Scale Range", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
			}},
		{Address: regFIFOEn, Name: "FIFO_EN", Access: "RW"},

		// Interrupts
		{Address: regIntPinCfg, Name: "INT_PIN_CFG", Access: "RW"},
		{Address: regIntEnable, Name: "INT_ENABLE", Access: "RW",
			BitFields: []BitField{
				{Bits: "4", Name: "FIFO_OFLOW_EN", Description: "FIFO overflow interrupt"},
				{Bits: "1", Name: "DMP_INT_EN", Description: "DMP interrupt"},
				{Bits: "0", Name: "DATA_RDY_EN", Description: "Data ready interrupt"},
			}},
		{Address: regIntStatus, Name: "INT_STATUS", Access: "R"},

		// Data
		{Address: regAccelXoutH, Name: "ACCEL_XOUT_H", Access: "R"},
		{Address: regGyroXoutH, Name: "GYRO_XOUT_H", Access: "R"},

		// Control
		{Address: regUserCtrl, Name: "USER_CTRL", Access: "RW",
			BitFields: []BitField{
				{Bits: "7", Name: "DMP_EN", Description: "DMP enable"},
				{Bits: "6", Name: "FIFO_EN", Description: "FIFO enable"},
				{Bits: "3", Name: "DMP_RESET", Description: "DMP reset"},
				{Bits: "2", Name: "FIFO_RESET", Description: "FIFO reset"},
			}},
		{Address: regPwrMgmt1, Name: "PWR_MGMT_1", Access: "RW",
			BitFields: []BitField{
				{Bits: "7", Name: "DEVICE_RESET", Description: "Reset all registers"},
				{Bits: "6", Name: "SLEEP", Description: "Sleep mode"},
				{Bits: "2:0", Name: "CLKSEL", Description: "Clock source", Values: "0=8MHz, 1=PLL X gyro, 2=PLL Y gyro, 3=PLL Z gyro"},
			}},
		{Address: regBankSel, Name: "BANK_SEL", Access: "RW"},
		{Address: regMemStart, Name: "MEM_START_ADDR", Access: "RW"},
		{Address: regDMPCfg1, Name: "DMP_CFG_1", Access: "RW"},
		{Address: regDMPCfg2, Name: "DMP_CFG_2", Access: "RW"},
		{Address: regFIFOCountH, Name: "FIFO_COUNTH", Access: "R"},
		{Address: regWhoAmI, Name: "WHO_AM_I", Access: "R"},
	}
}
