package cctalk

import "fmt"

// Header is the ccTalk command/reply header byte (the "opcode" of a
// frame). Host requests use the command headers below; a normal device
// reply carries HeaderReply (0).
//
// This is the generic core and MDCES command set from the ccTalk
// specification. Device-specific payload semantics are out of scope;
// the engine only needs the headers themselves.
type Header uint8

// Reply headers.
const (
	// HeaderReply (ACK) is the return header of a normal device reply.
	HeaderReply Header = 0

	// HeaderNACK indicates the device received the frame but rejects
	// the command.
	HeaderNACK Header = 5

	// HeaderBusy indicates the device cannot service the command yet.
	HeaderBusy Header = 6
)

// Core commands.
const (
	HeaderResetDevice                Header = 1
	HeaderRequestCommsRevision       Header = 4
	HeaderSimplePoll                 Header = 254
	HeaderRequestStatus              Header = 248
	HeaderRequestVariableSet         Header = 247
	HeaderRequestManufacturerID      Header = 246
	HeaderRequestEquipmentCategoryID Header = 245
	HeaderRequestProductCode         Header = 244
	HeaderRequestDatabaseVersion     Header = 243
	HeaderRequestSerialNumber        Header = 242
	HeaderRequestSoftwareRevision    Header = 241
	HeaderRequestBuildCode           Header = 192
)

// MDCES (multi-drop) commands.
const (
	HeaderAddressPoll   Header = 253
	HeaderAddressClash  Header = 252
	HeaderAddressChange Header = 251
	HeaderAddressRandom Header = 250
)

// Coin acceptor commands.
const (
	HeaderModifyInhibitStatus     Header = 231
	HeaderRequestInhibitStatus    Header = 230
	HeaderReadBufferedCredit      Header = 229
	HeaderModifyMasterInhibit     Header = 228
	HeaderRequestMasterInhibit    Header = 227
	HeaderRequestCoinID           Header = 184
	HeaderRequestSorterPaths      Header = 209
	HeaderTeachModeControl        Header = 202
	HeaderRequestTeachStatus      Header = 201
	HeaderRequestAcceptCounter    Header = 225
	HeaderRequestInsertionCounter Header = 226
)

// Payout (hopper) commands.
const (
	HeaderEnableHopper               Header = 164
	HeaderTestHopper                 Header = 163
	HeaderDispenseHopperCoins        Header = 167
	HeaderRequestHopperStatus        Header = 166
	HeaderRequestHopperDispenseCount Header = 168
	HeaderModifyVariableSet          Header = 165
	HeaderEmergencyStop              Header = 172
	HeaderRequestHopperCoin          Header = 171
	HeaderRequestPayoutStatus        Header = 217
	HeaderPumpRNG                    Header = 161
	HeaderRequestCipherKey           Header = 160
)

// Bill validator commands.
const (
	HeaderReadBufferedBillEvents      Header = 159
	HeaderModifyBillID                Header = 158
	HeaderRequestBillID               Header = 157
	HeaderRequestCountryScalingFactor Header = 156
	HeaderRouteBill                   Header = 154
	HeaderModifyBillOperatingMode     Header = 153
	HeaderRequestBillOperatingMode    Header = 152
)

// String returns the specification name of well-known headers, or a
// numeric form for the rest.
func (h Header) String() string {
	switch h {
	case HeaderReply:
		return "Reply"
	case HeaderNACK:
		return "NACK"
	case HeaderBusy:
		return "Busy"
	case HeaderResetDevice:
		return "ResetDevice"
	case HeaderRequestCommsRevision:
		return "RequestCommsRevision"
	case HeaderSimplePoll:
		return "SimplePoll"
	case HeaderAddressPoll:
		return "AddressPoll"
	case HeaderAddressClash:
		return "AddressClash"
	case HeaderAddressChange:
		return "AddressChange"
	case HeaderAddressRandom:
		return "AddressRandom"
	case HeaderRequestStatus:
		return "RequestStatus"
	case HeaderRequestManufacturerID:
		return "RequestManufacturerID"
	case HeaderRequestEquipmentCategoryID:
		return "RequestEquipmentCategoryID"
	case HeaderRequestProductCode:
		return "RequestProductCode"
	case HeaderRequestSerialNumber:
		return "RequestSerialNumber"
	case HeaderRequestSoftwareRevision:
		return "RequestSoftwareRevision"
	case HeaderModifyInhibitStatus:
		return "ModifyInhibitStatus"
	case HeaderRequestInhibitStatus:
		return "RequestInhibitStatus"
	case HeaderReadBufferedCredit:
		return "ReadBufferedCredit"
	case HeaderDispenseHopperCoins:
		return "DispenseHopperCoins"
	case HeaderRequestHopperStatus:
		return "RequestHopperStatus"
	case HeaderEnableHopper:
		return "EnableHopper"
	case HeaderTestHopper:
		return "TestHopper"
	case HeaderReadBufferedBillEvents:
		return "ReadBufferedBillEvents"
	default:
		return fmt.Sprintf("Header(%d)", uint8(h))
	}
}
