package digitransit

const nearbyStopsQuery = `
query NearbyStops($lat: Float!, $lon: Float!, $radius: Int!) {
  stopsByRadius(lat: $lat, lon: $lon, radius: $radius) {
    edges {
      node {
        distance
        stop {
          gtfsId
          name
          code
          vehicleMode
          parentStation {
            gtfsId
            name
          }
        }
      }
    }
  }
}`

const stopDeparturesQuery = `
query StopDepartures($id: String!, $departures: Int!) {
  stop(id: $id) {
    name
    platformCode
    stoptimesWithoutPatterns(numberOfDepartures: $departures) {
      serviceDay
      scheduledDeparture
      realtimeDeparture
      departureDelay
      realtime
      pickupType
      headsign
      stop {
        code
        platformCode
      }
      trip {
        route {
          mode
          shortName
        }
      }
    }
  }
}`

const stationDeparturesQuery = `
query StationDepartures($id: String!, $departures: Int!) {
  station(id: $id) {
    name
    stoptimesWithoutPatterns(numberOfDepartures: $departures) {
      serviceDay
      scheduledDeparture
      realtimeDeparture
      departureDelay
      realtime
      pickupType
      headsign
      stop {
        code
        platformCode
      }
      trip {
        route {
          mode
          shortName
        }
      }
    }
  }
}`
