package model_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/okian/patpat/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestVec3(t *testing.T) {
	convey.Convey("Given two vectors", t, func() {
		a := model.V3(1, 0, 0)
		b := model.V3(0, 1, 0)

		convey.Convey("Then basic arithmetic holds", func() {
			convey.So(a.Add(b), convey.ShouldResemble, model.V3(1, 1, 0))
			convey.So(a.Sub(b), convey.ShouldResemble, model.V3(1, -1, 0))
			convey.So(a.Scale(3), convey.ShouldResemble, model.V3(3, 0, 0))
			convey.So(a.Dot(b), convey.ShouldEqual, 0)
		})

		convey.Convey("Then the cross product follows the right-hand rule", func() {
			convey.So(a.Cross(b), convey.ShouldResemble, model.V3(0, 0, 1))
		})

		convey.Convey("Then distance and norm agree", func() {
			convey.So(a.Distance(b), convey.ShouldAlmostEqual, math.Sqrt2, 1e-12)
			convey.So(model.V3(3, 4, 0).Norm(), convey.ShouldEqual, 5)
		})

		convey.Convey("Then the unit of a zero vector is zero", func() {
			convey.So(model.Vec3{}.Unit(), convey.ShouldResemble, model.Vec3{})
			convey.So(model.V3(0, 0, 2).Unit(), convey.ShouldResemble, model.V3(0, 0, 1))
		})
	})

	convey.Convey("Given an r3 vector", t, func() {
		p := r3.Vec{X: 1, Y: -2, Z: 0.5}

		convey.Convey("Then it converts both ways unchanged", func() {
			convey.So(model.FromR3(p), convey.ShouldResemble, model.V3(1, -2, 0.5))
			convey.So(model.FromR3(p).R3(), convey.ShouldResemble, p)
		})

		convey.Convey("Then JSON keeps lower-case keys", func() {
			data, err := json.Marshal(model.FromR3(p))
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(data), convey.ShouldEqual, `{"x":1,"y":-2,"z":0.5}`)
		})
	})

	convey.Convey("Given configuration triples", t, func() {
		convey.So(model.Vec3FromSlice([]float64{1, 2, 3}), convey.ShouldResemble, model.V3(1, 2, 3))
		convey.So(model.Vec3FromSlice([]float64{1}), convey.ShouldResemble, model.V3(1, 0, 0))
		convey.So(model.Vec3FromSlice(nil), convey.ShouldResemble, model.Vec3{})
	})
}

func TestParseTransportKind(t *testing.T) {
	convey.Convey("Given configured connection types", t, func() {
		cases := map[string]model.TransportKind{
			"OSC":        model.TransportOSC,
			" osc ":      model.TransportOSC,
			"SlipSerial": model.TransportSlipSerial,
			"serial":     model.TransportSlipSerial,
		}
		for in, want := range cases {
			got, err := model.ParseTransportKind(in)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldEqual, want)
		}

		convey.Convey("When the type is unknown", func() {
			got, err := model.ParseTransportKind("bluetooth")
			convey.So(errors.Is(err, model.ErrUnknownTransport), convey.ShouldBeTrue)
			convey.So(got, convey.ShouldEqual, model.TransportUnknown)
		})
	})
}

func TestStateStrings(t *testing.T) {
	convey.Convey("Given connection states", t, func() {
		convey.So(model.StateUnknown.String(), convey.ShouldEqual, "unknown")
		convey.So(model.StateConnected.String(), convey.ShouldEqual, "connected")
		convey.So(model.StateDisconnected.String(), convey.ShouldEqual, "disconnected")
		convey.So(model.TransportOSC.String(), convey.ShouldEqual, "OSC")
		convey.So(model.TransportKind(42).String(), convey.ShouldEqual, "Unknown")
	})
}

func TestMessages(t *testing.T) {
	convey.Convey("Given inbound hardware messages", t, func() {
		var hb model.Message = model.HeartbeatMessage{MAC: "AA:AA:AA:AA:AA:AA", UptimeSeconds: 1}
		var dr model.Message = model.DiscoveryResponseMessage{MAC: "BB:BB:BB:BB:BB:BB", NumMotors: 4}

		convey.So(hb.SenderMAC(), convey.ShouldEqual, "AA:AA:AA:AA:AA:AA")
		convey.So(dr.SenderMAC(), convey.ShouldEqual, "BB:BB:BB:BB:BB:BB")

		convey.Convey("Then equal content means equal values", func() {
			convey.So(hb, convey.ShouldResemble, model.HeartbeatMessage{MAC: "AA:AA:AA:AA:AA:AA", UptimeSeconds: 1})
		})

		convey.Convey("Then macs are normalized for comparison", func() {
			convey.So(model.NormalizeMAC(" aa:bb:cc:dd:ee:ff "), convey.ShouldEqual, "AA:BB:CC:DD:EE:FF")
		})
	})
}
